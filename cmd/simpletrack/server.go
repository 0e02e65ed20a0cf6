package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	simpletrack "github.com/captainhcg/SimpleTrack"
	"github.com/captainhcg/SimpleTrack/internal/config"
	"github.com/captainhcg/SimpleTrack/internal/store"
)

// server answers history queries for registered projects. Every request
// opens its own Tracker, so requests run independently.
type server struct {
	store  *store.Store
	logger *slog.Logger
	cfg    *config.Config
}

func newServer(s *store.Store, logger *slog.Logger, cfg *config.Config) *server {
	return &server{store: s, logger: logger, cfg: cfg}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/projects", func(r chi.Router) {
		r.Get("/", s.handleProjects)
		r.Get("/{name}/history", s.handleHistory)
		r.Get("/{name}/locate", s.handleLocate)
	})
	return r
}

func (s *server) handleProjects(w http.ResponseWriter, _ *http.Request) {
	projects, err := s.store.Projects()
	if err != nil {
		s.logger.Error("list projects", "error", err)
		s.writeError(w, http.StatusInternalServerError, "project list", err)
		return
	}
	out := make([]CLIProject, len(projects))
	for i, p := range projects {
		out[i] = toCLIProject(p)
	}
	s.writeJSON(w, http.StatusOK, CLIResult{Command: "project list", Results: out})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := s.historyOptions(q.Get("differ"), q.Get("max"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "history", err)
		return
	}
	tr, ok := s.tracker(w, r, "history", opts...)
	if !ok {
		return
	}

	res, err := tr.History(r.Context(), q.Get("file"), q.Get("class"), q.Get("function"))
	if err != nil {
		s.fail(w, "history", err)
		return
	}
	snaps, err := applyFilter(r.Context(), s.logger, q.Get("where"), res.Snapshots)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "history", err)
		return
	}

	result := CLIResult{Command: "history", Results: toCLISnapshots(snaps), Truncated: res.Truncated}
	if res.Truncated {
		result.Reason = string(res.Reason)
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *server) handleLocate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tr, ok := s.tracker(w, r, "locate", s.baseOptions()...)
	if !ok {
		return
	}
	snap, err := tr.Locate(r.Context(), q.Get("rev"), q.Get("file"), q.Get("class"), q.Get("function"))
	if err != nil {
		s.fail(w, "locate", err)
		return
	}
	s.writeJSON(w, http.StatusOK, CLIResult{Command: "locate", Results: toCLISnapshot(*snap)})
}

// tracker resolves the {name} project and opens it. It writes the error
// response itself and reports false on failure.
func (s *server) tracker(w http.ResponseWriter, r *http.Request, command string, opts ...simpletrack.Option) (*simpletrack.Tracker, bool) {
	name := chi.URLParam(r, "name")
	p, err := s.store.ProjectByName(name)
	if err != nil {
		s.logger.Error("project lookup", "name", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, command, err)
		return nil, false
	}
	if p == nil {
		s.writeError(w, http.StatusNotFound, command, errors.New("unknown project "+strconv.Quote(name)))
		return nil, false
	}
	tr, err := simpletrack.New(r.Context(), p.Path, opts...)
	if err != nil {
		s.fail(w, command, err)
		return nil, false
	}
	return tr, true
}

func (s *server) baseOptions() []simpletrack.Option {
	return []simpletrack.Option{
		simpletrack.WithGitTimeout(s.cfg.GitTimeout),
		simpletrack.WithLogger(s.logger),
	}
}

// historyOptions applies the configured walk settings and the request's
// overrides.
func (s *server) historyOptions(differ, maxParam string) ([]simpletrack.Option, error) {
	if differ == "" {
		differ = s.cfg.Differ
	}
	kind, err := simpletrack.ParseDiffer(differ)
	if err != nil {
		return nil, err
	}
	maxSnapshots := s.cfg.MaxSnapshots
	if maxParam != "" {
		n, err := strconv.Atoi(maxParam)
		if err != nil || n < 0 {
			return nil, errors.New("max must be a non-negative integer")
		}
		maxSnapshots = n
	}
	return append(s.baseOptions(),
		simpletrack.WithDiffer(kind),
		simpletrack.WithTimeout(s.cfg.Timeout),
		simpletrack.WithMaxSnapshots(maxSnapshots),
		simpletrack.WithReverse(s.cfg.Order == "oldest"),
	), nil
}

// fail maps a query error to a status: bad input is 400, git failures are
// 502, anything else is 500.
func (s *server) fail(w http.ResponseWriter, command string, err error) {
	var cerr *simpletrack.CommandError
	switch {
	case errors.Is(err, simpletrack.ErrNoPath), errors.Is(err, simpletrack.ErrNoSymbol),
		errors.Is(err, simpletrack.ErrOutsideRepo):
		s.writeError(w, http.StatusBadRequest, command, err)
	case errors.As(err, &cerr):
		s.logger.Warn("git failure", "command", command, "error", err)
		s.writeError(w, http.StatusBadGateway, command, err)
	default:
		s.logger.Error("query failed", "command", command, "error", err)
		s.writeError(w, http.StatusInternalServerError, command, err)
	}
}

// writeJSON sends v with status code. The status is already on the wire
// when encoding fails, so the failure is only logged.
func (s *server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "status", code, "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, code int, command string, err error) {
	s.writeJSON(w, code, CLIResult{Command: command, Error: err.Error()})
}
