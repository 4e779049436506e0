package api

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/reelhaven/mediaserver/internal/apierror"
	"github.com/reelhaven/mediaserver/internal/auth"
	"github.com/reelhaven/mediaserver/internal/httputil"
)

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.items.GetItem(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteAPIError(w, apierror.NotFound("item not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (s *Server) handleListChildren(w http.ResponseWriter, r *http.Request) {
	children, err := s.items.ListChildren(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to list children"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, children)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		httputil.WriteAPIError(w, apierror.Unauthorized("authentication required"))
		return
	}
	state, err := s.items.GetUserItemState(user.UserID, chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to load progress"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		httputil.WriteAPIError(w, apierror.Unauthorized("authentication required"))
		return
	}

	var req struct {
		ProgressMs int64 `json:"progress_ms"`
		Played     bool  `json:"played"`
	}
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteAPIError(w, apierror.BadRequest("invalid request body"))
		return
	}
	if req.ProgressMs < 0 {
		httputil.WriteAPIError(w, apierror.BadRequest("progress_ms must not be negative"))
		return
	}

	itemID := chi.URLParam(r, "itemID")
	if err := s.items.UpdateProgress(user.UserID, itemID, req.ProgressMs, req.Played); err != nil {
		httputil.WriteAPIError(w, apierror.Internal("failed to record progress"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// browseEntry is one directory listing row; admins use this to pick
// library paths without a prior filesystem mapping.
type browseEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}

// handleBrowse lists the immediate children of an admin-supplied absolute
// path, for library-path setup. Restricted to directories so a client
// cannot use it to read arbitrary file contents.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	reqPath := r.URL.Query().Get("path")
	if reqPath == "" {
		reqPath = "/"
	}

	abs, err := filepath.Abs(reqPath)
	if err != nil {
		httputil.WriteAPIError(w, apierror.BadRequest("invalid path"))
		return
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		httputil.WriteAPIError(w, apierror.NotFound("path not found or not readable"))
		return
	}

	out := make([]browseEntry, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		out = append(out, browseEntry{Name: e.Name(), Path: filepath.Join(abs, e.Name()), IsDir: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"path":    abs,
		"parent":  filepath.Dir(abs),
		"entries": out,
	})
}
