package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"budgetplanner/internal/auth"
	applog "budgetplanner/internal/log"
)

const sessionCookieName = "session"

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	session, err := s.provider.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, signUpStatus(err), err)
		return
	}

	applog.FromContext(r.Context()).Info("user registered",
		applog.FieldComponent, applog.ComponentAuth,
		applog.FieldOperation, applog.OpSignUp,
		applog.FieldUserID, session.UserID)

	setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:  session.Token,
		UserID: session.UserID,
		Email:  session.Email,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	session, err := s.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	applog.FromContext(r.Context()).Info("user signed in",
		applog.FieldComponent, applog.ComponentAuth,
		applog.FieldOperation, applog.OpSignIn,
		applog.FieldUserID, session.UserID)

	setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:  session.Token,
		UserID: session.UserID,
		Email:  session.Email,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, auth.ErrNoSession)
		return
	}

	if err := s.provider.SignOut(r.Context(), token); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func signUpStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrEmailInUse):
		return http.StatusConflict
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
