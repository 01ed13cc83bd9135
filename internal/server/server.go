// Package server exposes a stored experiment graph over a read-only JSON
// API.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	track "github.com/bouthilx/track"
	"github.com/bouthilx/track/persistence"
	"github.com/bouthilx/track/structure"
)

// Config holds server-specific configuration.
type Config struct {
	Addr string
}

// NewHTTPServer builds the HTTP server serving a storage.
func NewHTTPServer(cfg Config, storage persistence.Storage) *http.Server {
	return &http.Server{
		Addr:    cfg.Addr,
		Handler: Handler(storage),
	}
}

// Handler builds the router. Every read handler refreshes the storage
// first so commits made by other processes become visible.
func Handler(storage persistence.Storage) http.Handler {
	a := &api{storage: storage}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/projects", a.handleProjects)
	r.Get("/api/projects/{uid}", a.handleProjectDetail)
	r.Get("/api/projects/{uid}/groups", a.handleProjectGroups)
	r.Get("/api/projects/{uid}/trials", a.handleProjectTrials)
	r.Get("/api/groups/{uid}", a.handleGroup)
	r.Get("/api/trials/{uid}", a.handleTrial)

	return r
}

type api struct {
	storage persistence.Storage
}

func (a *api) refresh(ctx context.Context, w http.ResponseWriter) bool {
	if err := a.storage.Refresh(ctx); err != nil {
		logrus.Warnf("refresh storage: %v", err)
		writeError(w, http.StatusInternalServerError, "storage refresh failed")
		return false
	}
	return true
}

func (a *api) handleProjects(w http.ResponseWriter, r *http.Request) {
	if !a.refresh(r.Context(), w) {
		return
	}

	projects, err := a.storage.FetchProjects(nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		out = append(out, track.Digest(p, false))
	}
	writeJSON(w, http.StatusOK, out)
}

// projectDetail is a project with its reference lists resolved.
type projectDetail struct {
	Project map[string]any   `json:"project"`
	Groups  []map[string]any `json:"groups"`
	Trials  []map[string]any `json:"trials"`
}

func (a *api) handleProjectDetail(w http.ResponseWriter, r *http.Request) {
	if !a.refresh(r.Context(), w) {
		return
	}

	project, ok := a.lookupProject(w, r)
	if !ok {
		return
	}

	// Results collected by each goroutine (no mutex needed, each writes
	// to its own var).
	var (
		groups []map[string]any
		trials []map[string]any
	)

	g, _ := errgroup.WithContext(r.Context())
	g.Go(func() error {
		resolved, err := a.resolveGroups(project.Groups)
		if err != nil {
			return err
		}
		groups = resolved
		return nil
	})
	g.Go(func() error {
		resolved, err := a.resolveTrials(project.Trials)
		if err != nil {
			return err
		}
		trials = resolved
		return nil
	})
	if err := g.Wait(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, projectDetail{
		Project: track.Digest(project, false),
		Groups:  groups,
		Trials:  trials,
	})
}

func (a *api) handleProjectGroups(w http.ResponseWriter, r *http.Request) {
	if !a.refresh(r.Context(), w) {
		return
	}

	project, ok := a.lookupProject(w, r)
	if !ok {
		return
	}
	groups, err := a.resolveGroups(project.Groups)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (a *api) handleProjectTrials(w http.ResponseWriter, r *http.Request) {
	if !a.refresh(r.Context(), w) {
		return
	}

	project, ok := a.lookupProject(w, r)
	if !ok {
		return
	}
	trials, err := a.resolveTrials(project.Trials)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trials)
}

func (a *api) handleGroup(w http.ResponseWriter, r *http.Request) {
	if !a.refresh(r.Context(), w) {
		return
	}

	group, err := a.storage.GetGroup(chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if group == nil {
		writeError(w, http.StatusNotFound, persistence.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, track.Digest(group, false))
}

func (a *api) handleTrial(w http.ResponseWriter, r *http.Request) {
	if !a.refresh(r.Context(), w) {
		return
	}

	trial, err := a.storage.GetTrial(chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trial == nil {
		writeError(w, http.StatusNotFound, persistence.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, track.Digest(trial, false))
}

func (a *api) lookupProject(w http.ResponseWriter, r *http.Request) (*structure.Project, bool) {
	project, err := a.storage.GetProject(chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if project == nil {
		writeError(w, http.StatusNotFound, persistence.ErrNotFound.Error())
		return nil, false
	}
	return project, true
}

func (a *api) resolveGroups(uids []string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(uids))
	for _, uid := range uids {
		group, err := a.storage.GetGroup(uid)
		if err != nil {
			return nil, err
		}
		if group == nil {
			logrus.Warnf("stale group reference (uid: %s), skipping", uid)
			continue
		}
		out = append(out, track.Digest(group, false))
	}
	return out, nil
}

func (a *api) resolveTrials(uids []string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(uids))
	for _, uid := range uids {
		trial, err := a.storage.GetTrial(uid)
		if err != nil {
			return nil, err
		}
		if trial == nil {
			logrus.Warnf("stale trial reference (uid: %s), skipping", uid)
			continue
		}
		out = append(out, track.Digest(trial, false))
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}
