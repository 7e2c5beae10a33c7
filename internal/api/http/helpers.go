package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quiz-note/quiznote/internal/quiz"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrCertificateNotFound):
		writeError(w, http.StatusNotFound, "certificate not found")
	case errors.Is(err, quiz.ErrQuestionNotFound):
		writeError(w, http.StatusNotFound, "question not found")
	default:
		writeError(w, http.StatusInternalServerError, "request failed")
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
