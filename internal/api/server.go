// Package api exposes the web front-end: JSON endpoints for record CRUD and
// search, signed photo URLs, and a server-sent-events stream that pushes
// change notifications to connected viewers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/CrimeVault/internal/auth"
	"github.com/dharsanguruparan/CrimeVault/internal/config"
	"github.com/dharsanguruparan/CrimeVault/internal/model"
	"github.com/dharsanguruparan/CrimeVault/internal/photostore"
	"github.com/dharsanguruparan/CrimeVault/internal/queue"
	"github.com/dharsanguruparan/CrimeVault/internal/search"
	"github.com/dharsanguruparan/CrimeVault/internal/signing"
	"github.com/dharsanguruparan/CrimeVault/internal/store"
	"github.com/dharsanguruparan/CrimeVault/internal/users"
)

// Server exposes HTTP endpoints over the shared record store.
type Server struct {
	cfg    *config.Config
	store  *store.RecordStore
	index  *search.Index
	auth   *auth.Service
	users  *users.Service
	signer *signing.Signer
	photos *photostore.Storage // nil when object storage is not configured
	queue  *asynq.Client       // nil when the photo pipeline is disabled
	events *EventSource        // nil when no live transport is up

	server *http.Server
	once   sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, recordStore *store.RecordStore, index *search.Index, authSvc *auth.Service, userSvc *users.Service, signer *signing.Signer, photos *photostore.Storage, queueClient *asynq.Client, events *EventSource) *Server {
	return &Server{
		cfg:    cfg,
		store:  recordStore,
		index:  index,
		auth:   authSvc,
		users:  userSvc,
		signer: signer,
		photos: photos,
		queue:  queueClient,
		events: events,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: corsMiddleware(loggingMiddleware(s.routes())),
		}
	})
	if s.events != nil {
		go s.events.Run(ctx)
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Printf("web front-end listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/photo", s.handlePhoto)
	mux.HandleFunc("/records", s.handleRecords)
	mux.HandleFunc("/records/", s.handleRecordRoute)
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/search/advanced", s.handleAdvancedSearch)
	mux.HandleFunc("/search/rebuild", s.handleRebuild)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/users", s.handleUsers)
	mux.HandleFunc("/users/", s.handleUserRoute)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAction authenticates the request via Basic auth and gates it on the
// permission table. Returns nil after writing the response when the caller
// may not proceed.
func (s *Server) requireAction(w http.ResponseWriter, r *http.Request, action auth.Action) *model.User {
	email, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="crimevault"`)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return nil
	}
	user, err := s.auth.Authenticate(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			w.Header().Set("WWW-Authenticate", `Basic realm="crimevault"`)
			http.Error(w, "invalid email or password", http.StatusUnauthorized)
			return nil
		}
		http.Error(w, "authentication unavailable", http.StatusInternalServerError)
		return nil
	}
	if !auth.Permitted(user.Role, action) {
		http.Error(w, "permission denied", http.StatusForbidden)
		return nil
	}
	return user
}

type recordRequest struct {
	Name      string `json:"name"`
	City      string `json:"city"`
	CrimeType string `json:"crimeType"`
	Details   string `json:"details"`
	PhotoPath string `json:"photoPath"`
}

func (req *recordRequest) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(req.City) == "" {
		return errors.New("city is required")
	}
	if strings.TrimSpace(req.CrimeType) == "" {
		return errors.New("crime type is required")
	}
	return nil
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRecords(w, r)
	case http.MethodPost:
		s.handleCreateRecord(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if s.requireAction(w, r, auth.ActionViewRecords) == nil {
		return
	}
	switch r.URL.Query().Get("order") {
	case "grouped":
		respondJSON(w, http.StatusOK, groupByDay(s.store.ListMostRecentFirst(), time.Now()))
	case "insertion":
		respondJSON(w, http.StatusOK, s.store.ListAll())
	default:
		// The web view leads with the freshest reports.
		respondJSON(w, http.StatusOK, s.store.ListMostRecentFirst())
	}
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	if s.requireAction(w, r, auth.ActionAddRecord) == nil {
		return
	}
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec, err := s.store.Create(r.Context(), req.Name, req.City, req.CrimeType, req.Details, req.PhotoPath)
	if err != nil {
		http.Error(w, "failed to store record", http.StatusInternalServerError)
		return
	}
	s.enqueuePhotoArchive(r.Context(), rec)
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleRecordRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/records/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleRecord(w, r, id)
		return
	}
	switch parts[1] {
	case "photo-url":
		s.handlePhotoURL(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		if s.requireAction(w, r, auth.ActionViewRecords) == nil {
			return
		}
		rec, err := s.store.GetByID(r.Context(), id)
		if err != nil {
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		respondJSON(w, http.StatusOK, rec)
	case http.MethodPut:
		if s.requireAction(w, r, auth.ActionEditRecord) == nil {
			return
		}
		var req recordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if err := req.validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ok, err := s.store.Edit(r.Context(), id, req.Name, req.City, req.CrimeType, req.Details, req.PhotoPath)
		if err != nil {
			http.Error(w, "failed to update record", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case http.MethodDelete:
		if s.requireAction(w, r, auth.ActionDeleteRecord) == nil {
			return
		}
		ok, err := s.store.Delete(r.Context(), id)
		if err != nil {
			http.Error(w, "failed to delete record", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.requireAction(w, r, auth.ActionSearchRecords) == nil {
		return
	}
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}
	var (
		results []model.Record
		err     error
	)
	switch r.URL.Query().Get("type") {
	case "city":
		results, err = s.index.ByCity(r.Context(), q)
	case "crimetype":
		results, err = s.index.ByCrimeType(r.Context(), q)
	case "details":
		results, err = s.index.ByDetails(r.Context(), q)
	case "name", "":
		results, err = s.index.ByName(r.Context(), q)
	default:
		http.Error(w, "unknown search type", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, searchResponse(results))
}

func (s *Server) handleAdvancedSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.requireAction(w, r, auth.ActionSearchRecords) == nil {
		return
	}
	query := r.URL.Query()
	results, err := s.index.AdvancedSearch(r.Context(), query.Get("name"), query.Get("city"), query.Get("type"))
	if err != nil {
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, searchResponse(results))
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.requireAction(w, r, auth.ActionSearchRecords) == nil {
		return
	}
	if err := s.index.Rebuild(r.Context()); err != nil {
		http.Error(w, "rebuild failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.requireAction(w, r, auth.ActionViewRecords) == nil {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total":       s.store.Count(),
		"byCrimeType": s.index.CrimeTypeCounts(),
	})
}

func (s *Server) handlePhotoURL(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.requireAction(w, r, auth.ActionViewRecords) == nil {
		return
	}
	rec, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if rec == nil || rec.PhotoPath == model.DefaultPhotoPath {
		http.Error(w, "no photo for record", http.StatusNotFound)
		return
	}
	expires := time.Now().Add(s.cfg.SignedURLTTL).Unix()
	sig := s.signer.Sign(rec.ID, expires)
	respondJSON(w, http.StatusOK, map[string]string{
		"url": fmt.Sprintf("/photo?id=%s&expires=%d&sig=%s", rec.ID, expires, sig),
	})
}

// handlePhoto serves a record's photo. The HMAC signature is the only
// credential here, so the links handed out by handlePhotoURL work in plain
// <img> tags without Basic auth.
func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query()
	id, expires, sig := query.Get("id"), query.Get("expires"), query.Get("sig")
	if !s.signer.Validate(id, expires, sig) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}
	if expired(expires) {
		http.Error(w, "link expired", http.StatusForbidden)
		return
	}
	rec, err := s.store.GetByID(r.Context(), id)
	if err != nil || rec == nil || rec.PhotoPath == model.DefaultPhotoPath {
		http.Error(w, "photo not found", http.StatusNotFound)
		return
	}
	if photostore.IsArchivedRef(rec.PhotoPath) {
		if s.photos == nil {
			http.Error(w, "photo storage unavailable", http.StatusServiceUnavailable)
			return
		}
		data, err := s.photos.Fetch(r.Context(), photostore.ObjectKeyFromRef(rec.PhotoPath))
		if err != nil {
			http.Error(w, "photo not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", photostore.ContentTypeFor(rec.PhotoPath))
		_, _ = w.Write(data)
		return
	}
	if _, err := os.Stat(rec.PhotoPath); err != nil {
		http.Error(w, "photo not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, rec.PhotoPath)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if s.requireAction(w, r, auth.ActionManageUsers) == nil {
			return
		}
		list, err := s.users.List(r.Context())
		if err != nil {
			http.Error(w, "failed to list users", http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, list)
	case http.MethodPost:
		if s.requireAction(w, r, auth.ActionAddUser) == nil {
			return
		}
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if err := s.users.AddUser(r.Context(), req.Email, req.Password, req.Role); err != nil {
			switch {
			case errors.Is(err, users.ErrDuplicateEmail), errors.Is(err, users.ErrInvalidRole):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "failed to add user", http.StatusInternalServerError)
			}
			return
		}
		respondJSON(w, http.StatusCreated, map[string]string{"status": "created"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleUserRoute(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimPrefix(r.URL.Path, "/users/")
	if email == "" {
		http.NotFound(w, r)
		return
	}
	if s.requireAction(w, r, auth.ActionManageUsers) == nil {
		return
	}
	switch r.Method {
	case http.MethodDelete:
		ok, err := s.users.Delete(r.Context(), email)
		if err != nil {
			if errors.Is(err, users.ErrProtectedUser) {
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}
			http.Error(w, "failed to delete user", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case http.MethodPut:
		var req struct {
			Role string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		ok, err := s.users.UpdateRole(r.Context(), email, req.Role)
		if err != nil {
			if errors.Is(err, users.ErrInvalidRole) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "failed to update role", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) enqueuePhotoArchive(ctx context.Context, rec *model.Record) {
	if s.queue == nil {
		return
	}
	if err := queue.EnqueueArchiveForRecord(ctx, s.queue, rec); err != nil {
		// Archival is best-effort; the record itself is already stored.
		log.Printf("enqueue photo archive for %s: %v", rec.ID, err)
	}
}

// groupedRecords buckets reports by calendar day for the dashboard view.
type groupedRecords struct {
	Today     []model.Record `json:"today"`
	Yesterday []model.Record `json:"yesterday"`
	Earlier   []model.Record `json:"earlier"`
	Total     int            `json:"total"`
}

func groupByDay(records []model.Record, now time.Time) groupedRecords {
	out := groupedRecords{Total: len(records)}
	today := now.UTC().Truncate(24 * time.Hour)
	yesterday := today.Add(-24 * time.Hour)
	for _, rec := range records {
		day := rec.CreatedAt.UTC().Truncate(24 * time.Hour)
		switch {
		case day.Equal(today):
			out.Today = append(out.Today, rec)
		case day.Equal(yesterday):
			out.Yesterday = append(out.Yesterday, rec)
		default:
			out.Earlier = append(out.Earlier, rec)
		}
	}
	return out
}

func searchResponse(results []model.Record) map[string]any {
	if results == nil {
		results = []model.Record{}
	}
	return map[string]any{"count": len(results), "results": results}
}

func expired(expires string) bool {
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return true
	}
	return time.Now().Unix() > unix
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
