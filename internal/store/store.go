// Package store keeps the live in-memory view of crime reports: an
// insertion-ordered list for bulk listing and a recency stack for
// latest-first display. Every mutation goes to persistence first and only
// then touches the two structures, so they always hold the same set of
// records as the backing table.
package store

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/CrimeVault/internal/model"
	"github.com/dharsanguruparan/CrimeVault/internal/repository"
)

// Persistence is the slice of the crime repository the store needs.
type Persistence interface {
	Insert(ctx context.Context, rec model.Record) (string, error)
	FindByID(ctx context.Context, id string) (*model.Record, error)
	UpdateByID(ctx context.Context, id string, rec model.Record) (int64, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
	FindAllSortedByCreatedDesc(ctx context.Context) ([]model.Record, error)
}

// Notifier receives a fire-and-forget ping after each successful mutation.
type Notifier interface {
	NotifyChange()
}

// RecordStore owns record CRUD plus the two in-memory orderings. One mutex
// guards the list/stack pair so mutations and snapshot reads are atomic with
// respect to each other; reads that go straight to persistence bypass it.
type RecordStore struct {
	repo Persistence

	mu       sync.Mutex
	records  []model.Record // insertion order
	recent   []model.Record // stack, last element is the top
	notifier Notifier
}

// NewRecordStore reloads everything from persistence sorted newest first and
// rebuilds both structures from scratch. A load failure here is the one
// condition callers are expected to treat as fatal.
func NewRecordStore(ctx context.Context, repo Persistence, notifier Notifier) (*RecordStore, error) {
	loaded, err := repo.FindAllSortedByCreatedDesc(ctx)
	if err != nil {
		return nil, err
	}
	s := &RecordStore{repo: repo, notifier: notifier}
	s.records = append(s.records, loaded...)
	// Push oldest first so the top of the stack is the most recent record.
	for i := len(loaded) - 1; i >= 0; i-- {
		s.recent = append(s.recent, loaded[i])
	}
	log.Printf("loaded %d crime records from database", len(loaded))
	return s, nil
}

// SetNotifier swaps the live transport. The web launcher uses this to point
// an already-running console store at the web server's notifier.
func (s *RecordStore) SetNotifier(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// Create persists a new report and inserts it into both orderings. The
// in-memory state is untouched when persistence fails.
func (s *RecordStore) Create(ctx context.Context, name, city, crimeType, details, photoPath string) (*model.Record, error) {
	rec := model.NewRecord(name, city, crimeType, details, photoPath)
	id, err := s.repo.Insert(ctx, rec)
	if err != nil {
		log.Printf("add crime record: %v", err)
		return nil, err
	}
	rec.ID = id

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.recent = append(s.recent, rec)
	s.mu.Unlock()

	s.fireNotify()
	return &rec, nil
}

// Edit replaces the editable fields of one report. It returns (false, nil)
// when the id does not exist; the created-at timestamp is never refreshed.
func (s *RecordStore) Edit(ctx context.Context, id, name, city, crimeType, details, photoPath string) (bool, error) {
	if photoPath == "" {
		photoPath = model.DefaultPhotoPath
	}
	fields := model.Record{Name: name, City: city, CrimeType: crimeType, Details: details, PhotoPath: photoPath}
	modified, err := s.repo.UpdateByID(ctx, id, fields)
	if err != nil {
		log.Printf("edit crime record %s: %v", id, err)
		return false, err
	}
	if modified == 0 {
		return false, nil
	}

	apply := func(rec *model.Record) {
		rec.Name = name
		rec.City = city
		rec.CrimeType = crimeType
		rec.Details = details
		rec.PhotoPath = photoPath
	}

	s.mu.Lock()
	for i := range s.records {
		if s.records[i].ID == id {
			apply(&s.records[i])
			break
		}
	}
	// The stack only exposes its top, so updating an arbitrary entry means
	// draining and rebuilding it in the same order.
	rebuilt := make([]model.Record, 0, len(s.recent))
	for i := range s.recent {
		rec := s.recent[i]
		if rec.ID == id {
			apply(&rec)
		}
		rebuilt = append(rebuilt, rec)
	}
	s.recent = rebuilt
	s.mu.Unlock()

	s.fireNotify()
	return true, nil
}

// Delete removes one report. It returns (false, nil) when the id does not
// exist; deletion is physical, there is no soft-delete.
func (s *RecordStore) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		log.Printf("delete crime record %s: %v", id, err)
		return false, err
	}
	if deleted == 0 {
		return false, nil
	}

	s.mu.Lock()
	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	s.records = kept
	rebuilt := make([]model.Record, 0, len(s.recent))
	for _, rec := range s.recent {
		if rec.ID != id {
			rebuilt = append(rebuilt, rec)
		}
	}
	s.recent = rebuilt
	s.mu.Unlock()

	s.fireNotify()
	return true, nil
}

// GetByID reads straight from persistence, always authoritative. A malformed
// id is a benign miss, not an error.
func (s *RecordStore) GetByID(ctx context.Context, id string) (*model.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		log.Printf("get crime record %s: %v", id, err)
		return nil, err
	}
	return rec, nil
}

// ListAll returns a snapshot of the insertion-ordered list. Callers may
// mutate the returned slice freely.
func (s *RecordStore) ListAll() []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Record, len(s.records))
	copy(out, s.records)
	return out
}

// ListMostRecentFirst drains a snapshot of the recency stack, newest first,
// without disturbing the store's own structure.
func (s *RecordStore) ListMostRecentFirst() []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Record, 0, len(s.recent))
	for i := len(s.recent) - 1; i >= 0; i-- {
		out = append(out, s.recent[i])
	}
	return out
}

// Count reports how many records the store currently holds.
func (s *RecordStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// fireNotify pings the notifier if one is wired. Called outside the
// structure lock so a slow transport can never stall a mutation.
func (s *RecordStore) fireNotify() {
	s.mu.Lock()
	n := s.notifier
	s.mu.Unlock()
	if n != nil {
		n.NotifyChange()
	}
}
