// Package shelladmin is a tiny HTTP front end exposing BundleContext-level
// operations: one concrete instance of the "event-loop front-ends (shell,
// custom drivers)" collaborator named in spec.md §6. It talks to the core
// exclusively through Framework/BundleContext calls, never through internal
// locks.
package shelladmin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ubundle/ubundle"
)

// Server wraps a chi router bound to one Framework.
type Server struct {
	fw     *ubundle.Framework
	router chi.Router
}

// NewServer builds the admin router. activators looks up an Activator by
// symbolic name for POST /bundles installs — the HTTP layer can't construct
// arbitrary Go activator code, so the caller supplies a registry of the
// ones it knows about.
func NewServer(fw *ubundle.Framework, activators map[string]ubundle.Activator) *Server {
	s := &Server{fw: fw}

	r := chi.NewRouter()
	r.Get("/framework", s.handleFrameworkState)
	r.Get("/bundles", s.handleListBundles)
	r.Post("/bundles", s.handleInstall(activators))
	r.Post("/bundles/{id}/start", s.handleStart)
	r.Post("/bundles/{id}/stop", s.handleStop)
	r.Post("/bundles/{id}/uninstall", s.handleUninstall)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

type bundleView struct {
	ID           int64  `json:"id"`
	SymbolicName string `json:"symbolicName"`
	State        string `json:"state"`
}

func toView(b *ubundle.Bundle) bundleView {
	return bundleView{ID: b.ID(), SymbolicName: b.SymbolicName(), State: b.State().String()}
}

func (s *Server) handleFrameworkState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"state": s.fw.State().String()})
}

func (s *Server) handleListBundles(w http.ResponseWriter, r *http.Request) {
	bundles := s.fw.Bundles()
	views := make([]bundleView, 0, len(bundles))
	for _, b := range bundles {
		views = append(views, toView(b))
	}
	writeJSON(w, http.StatusOK, views)
}

type installRequest struct {
	SymbolicName string `json:"symbolicName"`
	Activator    string `json:"activator"`
}

func (s *Server) handleInstall(activators map[string]ubundle.Activator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req installRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		act, ok := activators[req.Activator]
		if !ok {
			http.Error(w, "unknown activator: "+req.Activator, http.StatusBadRequest)
			return
		}
		b, err := s.fw.Context().InstallBundle(req.SymbolicName, act)
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusCreated, toView(b))
	}
}

func (s *Server) bundleFromPath(w http.ResponseWriter, r *http.Request) *ubundle.Bundle {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid bundle id", http.StatusBadRequest)
		return nil
	}
	b, err := s.fw.GetBundle(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil
	}
	return b
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	b := s.bundleFromPath(w, r)
	if b == nil {
		return
	}
	if b.State() == ubundle.StateInstalled {
		if err := b.Resolve(); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}
	if err := b.Start(0); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, toView(b))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	b := s.bundleFromPath(w, r)
	if b == nil {
		return
	}
	if err := b.Stop(0); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, toView(b))
}

func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	b := s.bundleFromPath(w, r)
	if b == nil {
		return
	}
	if err := b.Uninstall(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, toView(b))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
