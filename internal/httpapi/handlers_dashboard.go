package httpapi

import (
	"foodflow/internal/core"
	"foodflow/internal/exports"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (s *server) handleOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := s.svc.ActiveOperations(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": ops})
}

func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	advisories, err := s.svc.SyncAdvisories(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"advisories": advisories})
}

func (s *server) handleConsult(w http.ResponseWriter, r *http.Request) {
	var in core.ConsultInput
	if !decode(w, r, &in) {
		return
	}
	adv, res, err := s.svc.RunConsultation(r.Context(), userID(r), chi.URLParam(r, "cycleID"), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, withWarnings(map[string]any{"advisory": adv}, res))
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.Records(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == string(exports.FormatCSV) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="field-records.csv"`)
		w.WriteHeader(http.StatusOK)
		if err := exports.WriteRecordsCSV(w, records); err != nil {
			s.logger.Warn("write records csv", zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}
