package httpapi

import (
	"foodflow/internal/exports"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (s *server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		writeError(w, http.StatusNotFound, "exports not configured")
		return
	}
	var in struct {
		Formats []string `json:"formats"`
	}
	if !decode(w, r, &in) {
		return
	}
	formats := make([]exports.Format, 0, len(in.Formats))
	for _, name := range in.Formats {
		f, err := exports.ParseFormat(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		formats = append(formats, f)
	}
	record, err := s.exports.Enqueue(r.Context(), userID(r), formats)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

// ownedExport returns the export only when it belongs to the caller.
func (s *server) ownedExport(w http.ResponseWriter, r *http.Request) (exports.Record, bool) {
	if s.exports == nil {
		writeError(w, http.StatusNotFound, "exports not configured")
		return exports.Record{}, false
	}
	record, ok := s.exports.Get(chi.URLParam(r, "id"))
	if !ok || record.UserID != userID(r) {
		writeError(w, http.StatusNotFound, "export not found")
		return exports.Record{}, false
	}
	return record, true
}

func (s *server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	record, ok := s.ownedExport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func (s *server) handleExportArtifact(w http.ResponseWriter, r *http.Request) {
	record, ok := s.ownedExport(w, r)
	if !ok {
		return
	}
	format, err := exports.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	artifact, rc, err := s.exports.Open(r.Context(), record.ID, format)
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact not available")
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", artifact.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("stream export artifact", zap.String("export_id", record.ID), zap.Error(err))
	}
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotFound, "live feed not configured")
		return
	}
	if err := s.hub.Serve(w, r, userID(r)); err != nil {
		s.logger.Debug("live feed ended", zap.String("user_id", userID(r)), zap.Error(err))
	}
}
