// Package console implements the interactive menu front-end: login, record
// CRUD, search, user management and the in-process web dashboard launcher.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/dharsanguruparan/CrimeVault/internal/auth"
	"github.com/dharsanguruparan/CrimeVault/internal/model"
	"github.com/dharsanguruparan/CrimeVault/internal/search"
	"github.com/dharsanguruparan/CrimeVault/internal/store"
	"github.com/dharsanguruparan/CrimeVault/internal/users"
)

// Console drives the menu loop. Input and output are injected so tests can
// script a session.
type Console struct {
	store *store.RecordStore
	index *search.Index
	auth  *auth.Service
	users *users.Service

	// LaunchWeb starts the embedded web dashboard. Wired up by the caller;
	// nil disables the menu entry.
	LaunchWeb func(ctx context.Context) error

	// ArchivePhoto schedules background archival of a newly filed photo.
	// Wired up by the caller; nil disables archival.
	ArchivePhoto func(ctx context.Context, rec *model.Record)

	in  *bufio.Scanner
	out io.Writer

	webMu      sync.Mutex
	webRunning bool
}

// New constructs a console over the shared services.
func New(recordStore *store.RecordStore, index *search.Index, authSvc *auth.Service, userSvc *users.Service, in io.Reader, out io.Writer) *Console {
	return &Console{
		store: recordStore,
		index: index,
		auth:  authSvc,
		users: userSvc,
		in:    bufio.NewScanner(in),
		out:   out,
	}
}

// Run blocks until the user exits or input ends.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "=== CrimeVault ===")
	for {
		if c.auth.Current() == nil {
			if !c.login(ctx) {
				return nil
			}
		}
		if !c.menu(ctx) {
			return nil
		}
	}
}

// login prompts until credentials check out. Returns false when input ends.
func (c *Console) login(ctx context.Context) bool {
	for {
		email, ok := c.prompt("Email: ")
		if !ok {
			return false
		}
		password, ok := c.prompt("Password: ")
		if !ok {
			return false
		}
		user, err := c.auth.Login(ctx, email, password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				fmt.Fprintln(c.out, "Invalid email or password, try again.")
				continue
			}
			fmt.Fprintln(c.out, "Login unavailable, try again later.")
			log.Printf("login: %v", err)
			continue
		}
		fmt.Fprintf(c.out, "Welcome %s (%s)\n", user.Email, user.Role)
		return true
	}
}

// menu shows the main menu once and dispatches. Returns false to exit.
func (c *Console) menu(ctx context.Context) bool {
	fmt.Fprint(c.out, `
1) Add crime record
2) Edit crime record
3) Delete crime record
4) List records (latest first)
5) Search
6) Statistics
7) User management
8) Launch web dashboard
9) Logout
0) Exit
`)
	choice, ok := c.prompt("> ")
	if !ok {
		return false
	}
	switch choice {
	case "1":
		c.gated(auth.ActionAddRecord, func() { c.addRecord(ctx) })
	case "2":
		c.gated(auth.ActionEditRecord, func() { c.editRecord(ctx) })
	case "3":
		c.gated(auth.ActionDeleteRecord, func() { c.deleteRecord(ctx) })
	case "4":
		c.gated(auth.ActionViewRecords, func() { c.listRecords() })
	case "5":
		c.gated(auth.ActionSearchRecords, func() { c.searchMenu(ctx) })
	case "6":
		c.gated(auth.ActionViewRecords, func() { c.statistics() })
	case "7":
		c.gated(auth.ActionManageUsers, func() { c.userMenu(ctx) })
	case "8":
		c.launchWeb(ctx)
	case "9":
		c.auth.Logout()
		fmt.Fprintln(c.out, "Logged out.")
	case "0":
		fmt.Fprintln(c.out, "Goodbye.")
		return false
	default:
		fmt.Fprintln(c.out, "Unknown option.")
	}
	return true
}

// gated runs fn only when the logged-in role permits the action.
func (c *Console) gated(action auth.Action, fn func()) {
	if !c.auth.Permitted(action) {
		fmt.Fprintln(c.out, "Permission denied.")
		return
	}
	fn()
}

func (c *Console) addRecord(ctx context.Context) {
	name, ok := c.promptRequired("Name: ")
	if !ok {
		return
	}
	city, ok := c.promptRequired("City: ")
	if !ok {
		return
	}
	crimeType, ok := c.promptRequired("Crime type: ")
	if !ok {
		return
	}
	details, _ := c.prompt("Details: ")
	photoPath, _ := c.prompt("Photo path (blank for none): ")
	rec, err := c.store.Create(ctx, name, city, crimeType, details, photoPath)
	if err != nil {
		fmt.Fprintln(c.out, "Could not save the record.")
		return
	}
	if c.ArchivePhoto != nil {
		c.ArchivePhoto(ctx, rec)
	}
	fmt.Fprintf(c.out, "Record %s added.\n", rec.ID)
}

func (c *Console) editRecord(ctx context.Context) {
	id, ok := c.promptRequired("Record id: ")
	if !ok {
		return
	}
	existing, err := c.store.GetByID(ctx, id)
	if err != nil {
		fmt.Fprintln(c.out, "Lookup failed.")
		return
	}
	if existing == nil {
		fmt.Fprintln(c.out, "No record with that id.")
		return
	}
	c.printRecord(*existing)
	name := c.promptDefault("Name", existing.Name)
	city := c.promptDefault("City", existing.City)
	crimeType := c.promptDefault("Crime type", existing.CrimeType)
	details := c.promptDefault("Details", existing.Details)
	photoPath := c.promptDefault("Photo path", existing.PhotoPath)
	updated, err := c.store.Edit(ctx, id, name, city, crimeType, details, photoPath)
	if err != nil {
		fmt.Fprintln(c.out, "Could not update the record.")
		return
	}
	if !updated {
		fmt.Fprintln(c.out, "No record with that id.")
		return
	}
	fmt.Fprintln(c.out, "Record updated.")
}

func (c *Console) deleteRecord(ctx context.Context) {
	id, ok := c.promptRequired("Record id: ")
	if !ok {
		return
	}
	deleted, err := c.store.Delete(ctx, id)
	if err != nil {
		fmt.Fprintln(c.out, "Could not delete the record.")
		return
	}
	if !deleted {
		fmt.Fprintln(c.out, "No record with that id.")
		return
	}
	fmt.Fprintln(c.out, "Record deleted.")
}

func (c *Console) listRecords() {
	records := c.store.ListMostRecentFirst()
	if len(records) == 0 {
		fmt.Fprintln(c.out, "No records yet.")
		return
	}
	for _, rec := range records {
		c.printRecord(rec)
	}
	fmt.Fprintf(c.out, "%d record(s).\n", len(records))
}

func (c *Console) searchMenu(ctx context.Context) {
	fmt.Fprint(c.out, `
1) By name
2) By city
3) By crime type
4) In details
5) Advanced (AND filters)
6) Rebuild indexes
`)
	choice, ok := c.prompt("> ")
	if !ok {
		return
	}
	var (
		results []model.Record
		err     error
	)
	switch choice {
	case "1":
		q, ok := c.promptRequired("Name: ")
		if !ok {
			return
		}
		results, err = c.index.ByName(ctx, q)
	case "2":
		q, ok := c.promptRequired("City: ")
		if !ok {
			return
		}
		results, err = c.index.ByCity(ctx, q)
	case "3":
		q, ok := c.promptRequired("Crime type: ")
		if !ok {
			return
		}
		results, err = c.index.ByCrimeType(ctx, q)
	case "4":
		q, ok := c.promptRequired("Keyword: ")
		if !ok {
			return
		}
		results, err = c.index.ByDetails(ctx, q)
	case "5":
		name, _ := c.prompt("Name filter (blank to skip): ")
		city, _ := c.prompt("City filter (blank to skip): ")
		crimeType, _ := c.prompt("Crime type filter (blank to skip): ")
		results, err = c.index.AdvancedSearch(ctx, name, city, crimeType)
	case "6":
		if err := c.index.Rebuild(ctx); err != nil {
			fmt.Fprintln(c.out, "Rebuild failed.")
			return
		}
		fmt.Fprintln(c.out, "Indexes rebuilt.")
		return
	default:
		fmt.Fprintln(c.out, "Unknown option.")
		return
	}
	if err != nil {
		fmt.Fprintln(c.out, "Search failed.")
		return
	}
	if len(results) == 0 {
		fmt.Fprintln(c.out, "No matches.")
		return
	}
	for _, rec := range results {
		c.printRecord(rec)
	}
	fmt.Fprintf(c.out, "%d match(es).\n", len(results))
}

func (c *Console) statistics() {
	counts := c.index.CrimeTypeCounts()
	fmt.Fprintf(c.out, "Total records: %d\n", c.store.Count())
	for crimeType, n := range counts {
		fmt.Fprintf(c.out, "  %s: %d\n", crimeType, n)
	}
}

func (c *Console) userMenu(ctx context.Context) {
	fmt.Fprint(c.out, `
1) Add user
2) List users
3) Delete user
4) Change role
`)
	choice, ok := c.prompt("> ")
	if !ok {
		return
	}
	switch choice {
	case "1":
		email, ok := c.promptRequired("Email: ")
		if !ok {
			return
		}
		password, ok := c.promptRequired("Password: ")
		if !ok {
			return
		}
		role, ok := c.promptRequired("Role (admin/special/normal): ")
		if !ok {
			return
		}
		if err := c.users.AddUser(ctx, email, password, role); err != nil {
			switch {
			case errors.Is(err, users.ErrDuplicateEmail):
				fmt.Fprintln(c.out, "A user with that email already exists.")
			case errors.Is(err, users.ErrInvalidRole):
				fmt.Fprintln(c.out, "Unknown role.")
			default:
				fmt.Fprintln(c.out, "Could not add the user.")
			}
			return
		}
		fmt.Fprintln(c.out, "User added.")
	case "2":
		list, err := c.users.List(ctx)
		if err != nil {
			fmt.Fprintln(c.out, "Could not list users.")
			return
		}
		for _, u := range list {
			fmt.Fprintf(c.out, "  %s (%s)\n", u.Email, u.Role)
		}
	case "3":
		email, ok := c.promptRequired("Email to delete: ")
		if !ok {
			return
		}
		deleted, err := c.users.Delete(ctx, email)
		if err != nil {
			if errors.Is(err, users.ErrProtectedUser) {
				fmt.Fprintln(c.out, "The admin account cannot be deleted.")
				return
			}
			fmt.Fprintln(c.out, "Could not delete the user.")
			return
		}
		if !deleted {
			fmt.Fprintln(c.out, "No user with that email.")
			return
		}
		fmt.Fprintln(c.out, "User deleted.")
	case "4":
		email, ok := c.promptRequired("Email: ")
		if !ok {
			return
		}
		role, ok := c.promptRequired("New role (admin/special/normal): ")
		if !ok {
			return
		}
		changed, err := c.users.UpdateRole(ctx, email, role)
		if err != nil {
			if errors.Is(err, users.ErrInvalidRole) {
				fmt.Fprintln(c.out, "Unknown role.")
				return
			}
			fmt.Fprintln(c.out, "Could not change the role.")
			return
		}
		if !changed {
			fmt.Fprintln(c.out, "No user with that email.")
			return
		}
		fmt.Fprintln(c.out, "Role updated.")
	default:
		fmt.Fprintln(c.out, "Unknown option.")
	}
}

func (c *Console) launchWeb(ctx context.Context) {
	if c.LaunchWeb == nil {
		fmt.Fprintln(c.out, "Web dashboard is not available in this build.")
		return
	}
	c.webMu.Lock()
	if c.webRunning {
		c.webMu.Unlock()
		fmt.Fprintln(c.out, "Web dashboard is already running.")
		return
	}
	c.webRunning = true
	c.webMu.Unlock()
	go func() {
		if err := c.LaunchWeb(ctx); err != nil {
			log.Printf("web dashboard: %v", err)
			// A failed start (port in use, redis down) may be retried from
			// the menu once the cause is cleared.
			c.webMu.Lock()
			c.webRunning = false
			c.webMu.Unlock()
		}
	}()
	fmt.Fprintln(c.out, "Web dashboard starting; records stay in sync with this session.")
}

func (c *Console) printRecord(rec model.Record) {
	fmt.Fprintf(c.out, "[%s] %s | %s, %s (%s)\n",
		rec.CreatedAt.Format("2006-01-02 15:04"), rec.Name, rec.CrimeType, rec.City, rec.ID)
	if rec.Details != "" {
		fmt.Fprintf(c.out, "    %s\n", rec.Details)
	}
}

// prompt reads one line. ok is false when input is exhausted.
func (c *Console) prompt(label string) (value string, ok bool) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

// promptRequired re-prompts until the user types something.
func (c *Console) promptRequired(label string) (string, bool) {
	for {
		value, ok := c.prompt(label)
		if !ok {
			return "", false
		}
		if value != "" {
			return value, true
		}
		fmt.Fprintln(c.out, "A value is required.")
	}
}

// promptDefault keeps the current value when the user just presses enter.
func (c *Console) promptDefault(label, current string) string {
	value, ok := c.prompt(fmt.Sprintf("%s [%s]: ", label, current))
	if !ok || value == "" {
		return current
	}
	return value
}
