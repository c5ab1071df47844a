package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/CrimeVault/internal/auth"
	"github.com/dharsanguruparan/CrimeVault/internal/model"
	"github.com/dharsanguruparan/CrimeVault/internal/repository"
	"github.com/dharsanguruparan/CrimeVault/internal/search"
	"github.com/dharsanguruparan/CrimeVault/internal/store"
	"github.com/dharsanguruparan/CrimeVault/internal/users"
)

type fakeRepo struct {
	mu      sync.Mutex
	records map[string]model.Record
	order   []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[string]model.Record{}}
}

func (f *fakeRepo) Insert(ctx context.Context, rec model.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = uuid.NewString()
	f.records[rec.ID] = rec
	f.order = append(f.order, rec.ID)
	return rec.ID, nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id string) (*model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeRepo) UpdateByID(ctx context.Context, id string, rec model.Record) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.records[id]
	if !ok {
		return 0, nil
	}
	rec.ID = id
	rec.CreatedAt = existing.CreatedAt
	f.records[id] = rec
	return 1, nil
}

func (f *fakeRepo) DeleteByID(ctx context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return 0, nil
	}
	delete(f.records, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return 1, nil
}

func (f *fakeRepo) FindAllSortedByCreatedDesc(ctx context.Context) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Record, 0, len(f.order))
	for i := len(f.order) - 1; i >= 0; i-- {
		out = append(out, f.records[f.order[i]])
	}
	return out, nil
}

func (f *fakeRepo) FindWhere(ctx context.Context, filter repository.Filter) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matches := func(value, pattern string) bool {
		if pattern == "" {
			return true
		}
		return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
	}
	var out []model.Record
	for i := len(f.order) - 1; i >= 0; i-- {
		rec := f.records[f.order[i]]
		if matches(rec.Name, filter.Name) && matches(rec.City, filter.City) &&
			matches(rec.CrimeType, filter.CrimeType) && matches(rec.Details, filter.Details) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]model.User{
		"admin@x":  {Email: "admin@x", Password: "adminpw", Role: model.RoleAdmin},
		"normal@x": {Email: "normal@x", Password: "normalpw", Role: model.RoleNormal},
	}}
}

func (f *fakeUsers) FindByCredentials(ctx context.Context, email, password string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok || u.Password != password {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) Insert(ctx context.Context, u model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.Email] = u
	return nil
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) List(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) Delete(ctx context.Context, email string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; !ok {
		return 0, nil
	}
	delete(f.users, email)
	return 1, nil
}

func (f *fakeUsers) UpdateRole(ctx context.Context, email string, role model.Role) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return 0, nil
	}
	u.Role = role
	f.users[email] = u
	return 1, nil
}

// runSession feeds a scripted input to the console and returns its output.
func runSession(t *testing.T, script string) (string, *store.RecordStore) {
	t.Helper()
	repo := newFakeRepo()
	recordStore, err := store.NewRecordStore(context.Background(), repo, nil)
	if err != nil {
		t.Fatalf("new record store: %v", err)
	}
	index := search.NewIndex(context.Background(), repo)
	accounts := newFakeUsers()
	var out bytes.Buffer
	c := New(recordStore, index, auth.NewService(accounts), users.NewService(accounts), strings.NewReader(script), &out)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	return out.String(), recordStore
}

func TestLoginRetriesOnBadCredentials(t *testing.T) {
	script := strings.Join([]string{
		"admin@x", "wrong",
		"admin@x", "adminpw",
		"0",
	}, "\n") + "\n"
	out, _ := runSession(t, script)
	if !strings.Contains(out, "Invalid email or password") {
		t.Fatalf("expected a retry prompt, got:\n%s", out)
	}
	if !strings.Contains(out, "Welcome admin@x (admin)") {
		t.Fatalf("expected a welcome line, got:\n%s", out)
	}
}

func TestAddRecordFlow(t *testing.T) {
	script := strings.Join([]string{
		"admin@x", "adminpw",
		"1",
		"John Smith", "Springfield", "Theft", "stolen bicycle", "",
		"4",
		"0",
	}, "\n") + "\n"
	out, recordStore := runSession(t, script)
	if !strings.Contains(out, "added.") {
		t.Fatalf("expected add confirmation, got:\n%s", out)
	}
	if !strings.Contains(out, "John Smith") {
		t.Fatalf("expected the record in the listing, got:\n%s", out)
	}
	if recordStore.Count() != 1 {
		t.Fatalf("expected 1 stored record, got %d", recordStore.Count())
	}
}

func TestNormalRoleIsDeniedMutations(t *testing.T) {
	script := strings.Join([]string{
		"normal@x", "normalpw",
		"1",
		"7",
		"0",
	}, "\n") + "\n"
	out, recordStore := runSession(t, script)
	if strings.Count(out, "Permission denied.") != 2 {
		t.Fatalf("expected two denials, got:\n%s", out)
	}
	if recordStore.Count() != 0 {
		t.Fatalf("no record should have been created")
	}
}

func TestRequiredPromptReAsks(t *testing.T) {
	script := strings.Join([]string{
		"admin@x", "adminpw",
		"1",
		"", "John Smith", "Springfield", "Theft", "", "",
		"0",
	}, "\n") + "\n"
	out, _ := runSession(t, script)
	if !strings.Contains(out, "A value is required.") {
		t.Fatalf("expected a re-prompt on blank name, got:\n%s", out)
	}
	if !strings.Contains(out, "added.") {
		t.Fatalf("expected the record to be added after the retry, got:\n%s", out)
	}
}

func TestSearchSubmenu(t *testing.T) {
	script := strings.Join([]string{
		"admin@x", "adminpw",
		"1",
		"John Smith", "Springfield", "Theft", "bicycle", "",
		"5", "2", "Springfield",
		"0",
	}, "\n") + "\n"
	out, _ := runSession(t, script)
	if !strings.Contains(out, "1 match(es).") {
		t.Fatalf("expected one search match, got:\n%s", out)
	}
}

func TestUserManagementSubmenu(t *testing.T) {
	script := strings.Join([]string{
		"admin@x", "adminpw",
		"7", "1", "new@x", "pw", "special",
		"7", "2",
		"0",
	}, "\n") + "\n"
	out, _ := runSession(t, script)
	if !strings.Contains(out, "User added.") {
		t.Fatalf("expected user added, got:\n%s", out)
	}
	if !strings.Contains(out, "new@x (special)") {
		t.Fatalf("expected the new user in the listing, got:\n%s", out)
	}
}

func TestExitOnEndOfInput(t *testing.T) {
	out, _ := runSession(t, "admin@x\nadminpw\n")
	if !strings.Contains(out, "Welcome admin@x") {
		t.Fatalf("expected the session to log in before input ran out, got:\n%s", out)
	}
}

// newTestConsole builds a console over fakes without running it, for tests
// that need to wire the optional hooks first.
func newTestConsole(t *testing.T, script string, out *bytes.Buffer) *Console {
	t.Helper()
	repo := newFakeRepo()
	recordStore, err := store.NewRecordStore(context.Background(), repo, nil)
	if err != nil {
		t.Fatalf("new record store: %v", err)
	}
	index := search.NewIndex(context.Background(), repo)
	accounts := newFakeUsers()
	return New(recordStore, index, auth.NewService(accounts), users.NewService(accounts), strings.NewReader(script), out)
}

func TestAddRecordSchedulesPhotoArchive(t *testing.T) {
	script := strings.Join([]string{
		"admin@x", "adminpw",
		"1",
		"John Smith", "Springfield", "Theft", "stolen bicycle", "/tmp/mugshot.jpg",
		"1",
		"Jane Doe", "Springfield", "Fraud", "wire transfer", "",
		"0",
	}, "\n") + "\n"
	var out bytes.Buffer
	c := newTestConsole(t, script, &out)
	var archived []string
	c.ArchivePhoto = func(ctx context.Context, rec *model.Record) {
		archived = append(archived, rec.PhotoPath)
	}
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("expected the hook to fire for both records, got %d calls", len(archived))
	}
	if archived[0] != "/tmp/mugshot.jpg" {
		t.Fatalf("expected the filed photo path, got %q", archived[0])
	}
	if archived[1] != model.DefaultPhotoPath {
		t.Fatalf("expected the sentinel for the photo-less record, got %q", archived[1])
	}
}

func TestWebDashboardReportsAlreadyRunning(t *testing.T) {
	var out bytes.Buffer
	c := newTestConsole(t, "", &out)
	started := make(chan struct{})
	c.LaunchWeb = func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.launchWeb(ctx)
	<-started
	c.launchWeb(ctx)
	if !strings.Contains(out.String(), "already running") {
		t.Fatalf("expected an already-running notice, got:\n%s", out.String())
	}
}

func TestWebDashboardRetriesAfterFailedStart(t *testing.T) {
	var out bytes.Buffer
	c := newTestConsole(t, "", &out)
	attempts := make(chan struct{}, 2)
	c.LaunchWeb = func(ctx context.Context) error {
		attempts <- struct{}{}
		return errors.New("listen tcp :8080: address already in use")
	}
	ctx := context.Background()
	c.launchWeb(ctx)
	<-attempts

	// The failure is recorded asynchronously; wait for the latch to clear.
	deadline := time.After(2 * time.Second)
	for {
		c.webMu.Lock()
		running := c.webRunning
		c.webMu.Unlock()
		if !running {
			break
		}
		select {
		case <-deadline:
			t.Fatal("latch never cleared after a failed start")
		case <-time.After(5 * time.Millisecond):
		}
	}

	c.launchWeb(ctx)
	select {
	case <-attempts:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a second start attempt after the failure")
	}
	if strings.Contains(out.String(), "already running") {
		t.Fatalf("a failed start must not report the dashboard as running:\n%s", out.String())
	}
	if strings.Count(out.String(), "Web dashboard starting") != 2 {
		t.Fatalf("expected two start notices, got:\n%s", out.String())
	}
}
