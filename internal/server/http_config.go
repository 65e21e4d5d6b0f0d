package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

// versionETag is the entity tag for a config revision. The epoch is part of
// the tag so a version number reused after a store restart never matches.
func versionETag(rev model.Revision) string {
	if rev.Epoch == 0 {
		return fmt.Sprintf(`"v%d"`, rev.Version)
	}
	return fmt.Sprintf(`"v%d-%s"`, rev.Version, strconv.FormatInt(rev.Epoch, 36))
}

// setRevisionHeaders sets X-Config-Version and X-Config-Epoch.
func setRevisionHeaders(w http.ResponseWriter, rev model.Revision) {
	w.Header().Set("X-Config-Version", strconv.FormatInt(rev.Version, 10))
	if rev.Epoch != 0 {
		w.Header().Set("X-Config-Epoch", strconv.FormatInt(rev.Epoch, 10))
	}
}

// setVersionHeaders sets the revision headers and ETag and reports whether
// the client already holds this revision.
func setVersionHeaders(w http.ResponseWriter, r *http.Request, rev model.Revision) bool {
	etag := versionETag(rev)
	w.Header().Set("ETag", etag)
	setRevisionHeaders(w, rev)
	w.Header().Set("Cache-Control", "no-cache")
	return r.Header.Get("If-None-Match") == etag
}

// handleGetConfig handles GET /api/site-config.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.GetConfig(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if setVersionHeaders(w, r, snap.Revision()) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, snap.Config)
}

// handleGetStylesheet handles GET /api/site-config/css.
func (s *Server) handleGetStylesheet(w http.ResponseWriter, r *http.Request) {
	css, rev, err := s.svc.GetStylesheet(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if setVersionHeaders(w, r, rev) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, css)
}

// saveResponse is the body of a successful save.
type saveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	CSS     string `json:"css"`
	Version int64  `json:"version"`
	Changed bool   `json:"changed"`
}

// handleSaveConfig handles POST /api/site-config/save.
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	patch, err := model.DecodePatch(body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := s.svc.SaveConfig(r.Context(), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	msg := "Changes saved successfully"
	if !res.Changed {
		msg = "No changes"
	}
	setRevisionHeaders(w, res.Snapshot.Revision())
	writeJSON(w, http.StatusOK, saveResponse{
		Success: true,
		Message: msg,
		CSS:     res.StyleSheet,
		Version: res.Snapshot.Version,
		Changed: res.Changed,
	})
}

// handleListModules handles GET /api/site-config/modules.
func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	cat, err := s.svc.Modules(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// toggleResponse is the body of a module toggle.
type toggleResponse struct {
	Success bool   `json:"success"`
	Module  string `json:"module"`
	Enabled bool   `json:"enabled"`
	Locked  bool   `json:"locked"`
	Version int64  `json:"version"`
	Message string `json:"message,omitempty"`
}

// handleToggleModule handles POST /api/site-config/modules/{key}/toggle.
// Toggling a locked module is not an error; it reports success=false.
func (s *Server) handleToggleModule(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ToggleModule(r.Context(), r.PathValue("key"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := toggleResponse{
		Success: res.Changed,
		Module:  res.Module,
		Enabled: res.Enabled,
		Locked:  res.Locked,
		Version: res.Snapshot.Version,
	}
	if res.Locked {
		resp.Message = "module is locked"
	}
	writeJSON(w, http.StatusOK, resp)
}
