package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quiz-note/quiznote/internal/auth"
	"github.com/quiz-note/quiznote/internal/quiz"
)

type certificateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func ListCertificatesHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		certs, err := store.ListCertificates(r.Context(), sub)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, certs)
	}
}

func CreateCertificateHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req certificateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		cert := quiz.NewCertificate(req.Name, req.Description)
		if err := store.CreateCertificate(r.Context(), sub, cert); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, cert)
	}
}

func GetCertificateHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		cert, err := store.GetCertificate(r.Context(), sub, chi.URLParam(r, "certificateID"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cert)
	}
}

func UpdateCertificateHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req certificateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		cert := quiz.Certificate{
			ID:          chi.URLParam(r, "certificateID"),
			Name:        req.Name,
			Description: req.Description,
		}
		if err := store.UpdateCertificate(r.Context(), sub, cert); err != nil {
			writeStoreError(w, err)
			return
		}
		got, err := store.GetCertificate(r.Context(), sub, cert.ID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, got)
	}
}

func DeleteCertificateHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		if err := store.DeleteCertificate(r.Context(), sub, chi.URLParam(r, "certificateID")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
