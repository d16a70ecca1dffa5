package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkit/internal/common"
	"github.com/dmitrijs2005/authkit/internal/server/services"
)

const maxBodyBytes = 16 << 10

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type logoffRequest struct {
	Logoff bool `json:"logoff"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type sessionResponse struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type envelope struct {
	Result any        `json:"result,omitempty"`
	Error  *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, envelope{Result: result})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Error: &errorBody{Message: msg}})
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func setAuthCookie(w http.ResponseWriter, sess *services.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.AuthCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func toSessionResponse(sess *services.Session) sessionResponse {
	return sessionResponse{UserID: sess.UserID, Token: sess.Token, ExpiresAt: sess.ExpiresAt}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := s.users.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeResult(w, userResponse{ID: u.ID, Name: u.Name, Email: u.Email})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	sess, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	setAuthCookie(w, sess)
	writeResult(w, toSessionResponse(sess))
}

func (s *Server) logoff(w http.ResponseWriter, r *http.Request) {
	var req logoffRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Logoff {
		writeError(w, http.StatusBadRequest, "logoff must be true")
		return
	}

	clearAuthCookie(w)
	writeResult(w, map[string]bool{"logoff": true})
}

// me returns the caller and slides the cookie forward with a fresh token.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())

	sess, err := s.users.RefreshToken(r.Context(), u.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	setAuthCookie(w, sess)
	writeResult(w, userResponse{ID: u.ID, Name: u.Name, Email: u.Email})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decode(w, r, &req) {
		return
	}

	u := userFromContext(r.Context())
	if err := s.users.ChangePassword(r.Context(), u.ID, req.Password); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeResult(w, map[string]bool{"changed": true})
}

// logoutAll revokes every token of the caller, including the one in use.
func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	if err := s.users.InvalidateTokens(r.Context(), u.ID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	clearAuthCookie(w)
	writeResult(w, map[string]bool{"logout_all": true})
}
