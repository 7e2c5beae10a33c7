package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/quiz-note/quiznote/internal/auth"
)

// POST /auth/magic-link  { "email": "...", "redirect_to": "..." }
func MagicLinkHandler(a *auth.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email      string `json:"email"`
			RedirectTo string `json:"redirect_to"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		err := a.RequestMagicLink(r.Context(), req.Email, req.RedirectTo)
		if errors.Is(err, auth.ErrInvalidEmail) {
			writeError(w, http.StatusBadRequest, "a valid email is required")
			return
		}
		if err != nil {
			log.Error("magic link request failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not send sign-in link")
			return
		}
		// 202 regardless of whether the address was known before
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	}
}

// GET/POST /auth/verify  (?token=... or { "token": "..." })
func VerifyHandler(a *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			var req struct {
				Token string `json:"token"`
			}
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "bad json")
				return
			}
			token = req.Token
		}
		pair, err := a.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired link")
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

// POST /auth/refresh  { "refresh_token": "..." }
func RefreshHandler(a *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		pair, err := a.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "session expired, sign in again")
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

// POST /auth/logout
func LogoutHandler(a *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		if sub == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if err := a.Logout(r.Context(), sub); err != nil {
			writeError(w, http.StatusInternalServerError, "logout failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
