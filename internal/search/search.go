// Package search provides keyword lookup over crime reports: exact-match
// hashmap indexes for the name, city and crime type fields, with a fallback
// pattern scan against persistence when a bucket comes up empty.
package search

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/dharsanguruparan/CrimeVault/internal/model"
	"github.com/dharsanguruparan/CrimeVault/internal/repository"
)

// Persistence is the slice of the crime repository the index needs.
type Persistence interface {
	FindWhere(ctx context.Context, f repository.Filter) ([]model.Record, error)
	FindAllSortedByCreatedDesc(ctx context.Context) ([]model.Record, error)
}

// Index maps lowercased exact field values to the records sharing them. It
// is rebuilt wholesale from the persisted set, never patched incrementally,
// so it may trail concurrent mutations until the next Rebuild. That
// staleness is accepted; the fallback scan always sees current data.
type Index struct {
	repo Persistence

	mu     sync.RWMutex
	byName map[string][]model.Record
	byCity map[string][]model.Record
	byType map[string][]model.Record
}

// NewIndex builds the three indexes eagerly. A build failure leaves the
// indexes empty and is logged rather than surfaced, since every query can
// still fall back to the persistence scan.
func NewIndex(ctx context.Context, repo Persistence) *Index {
	ix := &Index{
		repo:   repo,
		byName: map[string][]model.Record{},
		byCity: map[string][]model.Record{},
		byType: map[string][]model.Record{},
	}
	if err := ix.Rebuild(ctx); err != nil {
		log.Printf("build search indexes: %v", err)
	}
	return ix
}

// Rebuild reloads the authoritative persisted set and swaps in fresh
// mappings. Readers never observe a partially built index.
func (ix *Index) Rebuild(ctx context.Context) error {
	loaded, err := ix.repo.FindAllSortedByCreatedDesc(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string][]model.Record)
	byCity := make(map[string][]model.Record)
	byType := make(map[string][]model.Record)
	for _, rec := range loaded {
		name := strings.ToLower(rec.Name)
		byName[name] = append(byName[name], rec)
		city := strings.ToLower(rec.City)
		byCity[city] = append(byCity[city], rec)
		crimeType := strings.ToLower(rec.CrimeType)
		byType[crimeType] = append(byType[crimeType], rec)
	}

	ix.mu.Lock()
	ix.byName, ix.byCity, ix.byType = byName, byCity, byType
	ix.mu.Unlock()
	return nil
}

// ByName searches by criminal name: exact case-insensitive bucket first,
// contains scan against persistence when the bucket is empty.
func (ix *Index) ByName(ctx context.Context, name string) ([]model.Record, error) {
	return ix.byExact(ctx, &ix.byName, name, repository.Filter{Name: name})
}

// ByCity searches by city.
func (ix *Index) ByCity(ctx context.Context, city string) ([]model.Record, error) {
	return ix.byExact(ctx, &ix.byCity, city, repository.Filter{City: city})
}

// ByCrimeType searches by crime type.
func (ix *Index) ByCrimeType(ctx context.Context, crimeType string) ([]model.Record, error) {
	return ix.byExact(ctx, &ix.byType, crimeType, repository.Filter{CrimeType: crimeType})
}

// ByDetails always scans persistence; long-form text is not worth exact
// bucketing.
func (ix *Index) ByDetails(ctx context.Context, details string) ([]model.Record, error) {
	if strings.TrimSpace(details) == "" {
		return nil, nil
	}
	return ix.repo.FindWhere(ctx, repository.Filter{Details: details})
}

// AdvancedSearch combines the provided filters with AND, each a
// case-insensitive contains match straight against persistence. Leaving
// every filter blank yields an empty result, not the whole table.
func (ix *Index) AdvancedSearch(ctx context.Context, name, city, crimeType string) ([]model.Record, error) {
	f := repository.Filter{
		Name:      strings.TrimSpace(name),
		City:      strings.TrimSpace(city),
		CrimeType: strings.TrimSpace(crimeType),
	}
	if f.Name == "" && f.City == "" && f.CrimeType == "" {
		return nil, nil
	}
	return ix.repo.FindWhere(ctx, f)
}

// CrimeTypeCounts tallies indexed records per crime type, used by the
// dashboard statistics view.
func (ix *Index) CrimeTypeCounts() map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	counts := make(map[string]int, len(ix.byType))
	for crimeType, bucket := range ix.byType {
		counts[crimeType] = len(bucket)
	}
	return counts
}

func (ix *Index) byExact(ctx context.Context, index *map[string][]model.Record, value string, fallback repository.Filter) ([]model.Record, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	if key == "" {
		return nil, nil
	}
	ix.mu.RLock()
	bucket := (*index)[key]
	ix.mu.RUnlock()
	if len(bucket) > 0 {
		out := make([]model.Record, len(bucket))
		copy(out, bucket)
		return out, nil
	}
	// No exact hit in the cached index; the pattern scan may still find
	// records added since the last rebuild.
	return ix.repo.FindWhere(ctx, fallback)
}
