// Package api serves the punch editor over JSON/HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Tiliavir/punch-clock/internal/account"
	"github.com/Tiliavir/punch-clock/internal/history"
	"github.com/Tiliavir/punch-clock/internal/model"
	"github.com/Tiliavir/punch-clock/internal/rules"
	"github.com/Tiliavir/punch-clock/internal/session"
	"github.com/Tiliavir/punch-clock/internal/storage"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

// Server holds one editing session per signed-in user. All sessions share
// the store and the debounced writer.
type Server struct {
	rules    rules.Rules
	store    storage.Store
	writer   session.Scheduler
	accounts account.Provider
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	editors map[string]*session.Editor
}

// New returns a Server.
func New(r rules.Rules, store storage.Store, writer session.Scheduler, accounts account.Provider, log zerolog.Logger) *Server {
	return &Server{
		rules:    r,
		store:    store,
		writer:   writer,
		accounts: accounts,
		log:      log.With().Str("component", "api").Logger(),
		now:      time.Now,
		editors:  make(map[string]*session.Editor),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	root := mux.NewRouter()
	root.Use(s.recoverPanics, s.logRequests)

	root.HandleFunc("/api/health", s.health).Methods(http.MethodGet)
	root.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	authed := root.PathPrefix("/api").Subrouter()
	authed.Use(s.authenticate)
	authed.HandleFunc("/me", s.me).Methods(http.MethodGet)
	authed.HandleFunc("/days/{date}", s.getDay).Methods(http.MethodGet)
	authed.HandleFunc("/days/{date}/input", s.postInput).Methods(http.MethodPost)
	authed.HandleFunc("/history", s.getHistory).Methods(http.MethodGet)

	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "no such route")
	})
	return root
}

// Close detaches every open editor. Pending writes are left to the writer.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ed := range s.editors {
		ed.Close()
		delete(s.editors, id)
	}
}

func (s *Server) editor(userID string) *session.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	ed, ok := s.editors[userID]
	if !ok {
		ed = session.NewEditor(s.rules, s.store, s.writer, s.log)
		s.editors[userID] = ed
	}
	return ed
}

// resolveDate accepts YYYY-MM-DD or "today".
func (s *Server) resolveDate(raw string) (string, error) {
	if raw == "today" {
		return timecalc.DateKey(s.now()), nil
	}
	if _, err := timecalc.ParseDate(raw); err != nil {
		return "", err
	}
	return raw, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, userFrom(r.Context()))
}

// getDay GET /api/days/{date}
func (s *Server) getDay(w http.ResponseWriter, r *http.Request) {
	view, ok := s.open(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

type inputRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
	// Mode is "type" for keystroke input or "commit" (default) for a whole value.
	Mode string `json:"mode"`
}

// postInput POST /api/days/{date}/input
func (s *Server) postInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid JSON")
		return
	}
	field, ok := model.ParseField(req.Field)
	if !ok {
		writeBadRequest(w, "unknown field "+strconv.Quote(req.Field))
		return
	}
	if req.Mode != "" && req.Mode != "type" && req.Mode != "commit" {
		writeBadRequest(w, "mode must be type or commit")
		return
	}
	if _, ok := s.open(w, r); !ok {
		return
	}

	ed := s.editor(userFrom(r.Context()).ID)
	var (
		view session.View
		err  error
	)
	if req.Mode == "type" {
		view, err = ed.Type(field, req.Value)
	} else {
		view, err = ed.Commit(field, req.Value)
	}
	switch {
	case errors.Is(err, session.ErrLoading), errors.Is(err, session.ErrNotOpen), errors.Is(err, session.ErrNotLoaded):
		WriteJSON(w, http.StatusConflict, view)
	case err != nil:
		writeInternalError(w, err.Error())
	default:
		WriteJSON(w, http.StatusOK, view)
	}
}

// open points the caller's editor at the requested date. A load failure is
// reported in the returned view rather than as an HTTP error.
func (s *Server) open(w http.ResponseWriter, r *http.Request) (session.View, bool) {
	date, err := s.resolveDate(mux.Vars(r)["date"])
	if err != nil {
		writeBadRequest(w, err.Error())
		return session.View{}, false
	}
	user := userFrom(r.Context())
	ed := s.editor(user.ID)
	err = ed.Open(r.Context(), user.ID, date)
	if errors.Is(err, storage.ErrInvalidUser) || errors.Is(err, storage.ErrInvalidDate) {
		writeBadRequest(w, err.Error())
		return session.View{}, false
	}
	return ed.View(), true
}

// getHistory GET /api/history?month=YYYY-MM
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	month := s.now()
	if raw := r.URL.Query().Get("month"); raw != "" {
		t, err := timecalc.ParseMonth(raw)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		month = t
	}
	user := userFrom(r.Context())
	m, err := history.Load(r.Context(), s.store, user.ID, month)
	if errors.Is(err, storage.ErrInvalidUser) {
		writeBadRequest(w, err.Error())
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("user", user.ID).Msg("history")
		writeInternalError(w, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, m)
}
