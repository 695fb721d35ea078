package httpapi

import (
	"foodflow/internal/core"
	"foodflow/pkg/domain"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.svc.Workspace(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *server) handleListParcels(w http.ResponseWriter, r *http.Request) {
	parcels, err := s.svc.ListParcels(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"parcels": parcels})
}

func (s *server) handleCreateParcel(w http.ResponseWriter, r *http.Request) {
	var in core.ParcelInput
	if !decode(w, r, &in) {
		return
	}
	parcel, res, err := s.svc.CreateParcel(r.Context(), userID(r), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, withWarnings(map[string]any{"parcel": parcel}, res))
}

func (s *server) handleUpdateParcel(w http.ResponseWriter, r *http.Request) {
	var upd core.ParcelUpdate
	if !decode(w, r, &upd) {
		return
	}
	parcel, res, err := s.svc.UpdateParcel(r.Context(), userID(r), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withWarnings(map[string]any{"parcel": parcel}, res))
}

func (s *server) handleDeleteParcel(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.DeleteParcel(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := s.svc.ListCycles(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycles": cycles})
}

func (s *server) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	var in core.CycleInput
	if !decode(w, r, &in) {
		return
	}
	cycle, res, err := s.svc.CreateCycle(r.Context(), userID(r), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, withWarnings(map[string]any{"cycle": cycle}, res))
}

func (s *server) handleUpdateCycle(w http.ResponseWriter, r *http.Request) {
	var upd core.CycleUpdate
	if !decode(w, r, &upd) {
		return
	}
	cycle, res, err := s.svc.UpdateCycle(r.Context(), userID(r), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withWarnings(map[string]any{"cycle": cycle}, res))
}

func (s *server) handleUpdateStage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Stage domain.GrowthStage `json:"stage"`
	}
	if !decode(w, r, &in) {
		return
	}
	cycle, res, err := s.svc.UpdateCycleStage(r.Context(), userID(r), chi.URLParam(r, "id"), in.Stage)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withWarnings(map[string]any{"cycle": cycle}, res))
}

func (s *server) handleDeleteCycle(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.DeleteCycle(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListAdvisories(w http.ResponseWriter, r *http.Request) {
	advisories, err := s.svc.ListAdvisories(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"advisories": advisories})
}

func (s *server) handleCompleteAdvisory(w http.ResponseWriter, r *http.Request) {
	adv, res, err := s.svc.CompleteAdvisory(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withWarnings(map[string]any{"advisory": adv}, res))
}

func (s *server) handleDeleteAdvisory(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.DeleteAdvisory(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
