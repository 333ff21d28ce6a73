package server

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/battlewithbytes/vagrantgen/internal/footer"
	"github.com/battlewithbytes/vagrantgen/internal/version"
)

func (s *Server) handleFooterFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, footer.List(s.cfg.Footer.Dir))
}

func (s *Server) handleFooterContent(w http.ResponseWriter, r *http.Request) {
	page, err := footer.Read(s.cfg.Footer.Dir, r.PathValue("filename"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, page)
	case errors.Is(err, footer.ErrInvalidName), errors.Is(err, footer.ErrInvalidUTF8):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, footer.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, footer.ErrHidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		s.fail(w, r, err)
	}
}

func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"storage":   st,
		"version":   version.Version,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	h := s.store.Health()
	status := http.StatusOK
	if !h.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleCleanupBackups(w http.ResponseWriter, r *http.Request) {
	keep, err := intQuery(r, "keep", s.cfg.Storage.BackupKeep)
	if err != nil || keep < 0 {
		writeError(w, http.StatusBadRequest, "keep must be a non-negative integer")
		return
	}
	removed, err := s.store.CleanupBackups(keep)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("backups cleaned up", zap.Int("removed", removed), zap.Int("keep", keep))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
		"kept":    keep,
	})
}
