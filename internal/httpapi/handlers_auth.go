package httpapi

import (
	"foodflow/internal/core"
	"foodflow/pkg/domain"
	"net/http"
	"time"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string           `json:"token,omitempty"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      core.UserProfile `json:"user"`
}

func (s *server) handleRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"regions": domain.Regions()})
}

func (s *server) handleDemoAdvisory(w http.ResponseWriter, r *http.Request) {
	var in core.SimulationInput
	if !decode(w, r, &in) {
		return
	}
	res, err := s.svc.SimulateAdvisory(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"advisory": res})
}

func (s *server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in core.SignupInput
	if !decode(w, r, &in) {
		return
	}
	user, _, err := s.svc.RegisterUser(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusCreated, user)
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	user, err := s.svc.Authenticate(r.Context(), in.Email, in.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, user)
}

func (s *server) writeSession(w http.ResponseWriter, r *http.Request, status int, user core.UserProfile) {
	token, session, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, sessionResponse{Token: token, ExpiresAt: session.ExpiresAt, User: user})
}

// handleSession restores the signed-in user from the presented token.
func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	user, err := s.svc.Profile(r.Context(), session.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ExpiresAt: session.ExpiresAt, User: user})
}

func (s *server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Profile(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd core.ProfileUpdate
	if !decode(w, r, &upd) {
		return
	}
	user, res, err := s.svc.UpdateProfile(r.Context(), userID(r), upd)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withWarnings(map[string]any{"user": user}, res))
}
