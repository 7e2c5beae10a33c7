package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quiz-note/quiznote/internal/auth"
	"github.com/quiz-note/quiznote/internal/quiz"
)

type questionRequest struct {
	Content     string          `json:"content"`
	Explanation string          `json:"explanation"`
	Options     []optionRequest `json:"question_options"`
}

type optionRequest struct {
	Content     string `json:"content"`
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation"`
}

func buildQuestion(certificateID string, req questionRequest) quiz.Question {
	q := quiz.NewQuestion(certificateID, req.Content)
	q.Explanation = req.Explanation
	for i, o := range req.Options {
		opt := quiz.NewOption(o.Content, o.IsCorrect)
		opt.Explanation = o.Explanation
		opt.QuestionID = q.ID
		opt.DisplayOrder = i
		q.Options = append(q.Options, opt)
	}
	return q
}

func writeValidationError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, quiz.ErrEmptyContent),
		errors.Is(err, quiz.ErrTooFewOptions),
		errors.Is(err, quiz.ErrNoCorrectOption),
		errors.Is(err, quiz.ErrManyCorrectOption):
		writeError(w, http.StatusBadRequest, err.Error())
		return true
	}
	return false
}

func ListQuestionsHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		questions, err := store.ListQuestions(r.Context(), sub, chi.URLParam(r, "certificateID"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, questions)
	}
}

func CreateQuestionHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req questionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		q := buildQuestion(chi.URLParam(r, "certificateID"), req)
		if err := quiz.ValidateQuestion(q); err != nil {
			writeValidationError(w, err)
			return
		}
		if err := store.CreateQuestion(r.Context(), sub, q); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

func GetQuestionHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		q, err := store.GetQuestion(r.Context(), sub, chi.URLParam(r, "questionID"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// UpdateQuestionHandler replaces content and options; attempt stats carry
// over untouched.
func UpdateQuestionHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		id := chi.URLParam(r, "questionID")

		existing, err := store.GetQuestion(r.Context(), sub, id)
		if err != nil {
			writeStoreError(w, err)
			return
		}

		var req questionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		q := buildQuestion(existing.CertificateID, req)
		q.ID = id
		for i := range q.Options {
			q.Options[i].QuestionID = id
		}
		if err := quiz.ValidateQuestion(q); err != nil {
			writeValidationError(w, err)
			return
		}
		if err := store.UpdateQuestion(r.Context(), sub, q); err != nil {
			writeStoreError(w, err)
			return
		}
		got, err := store.GetQuestion(r.Context(), sub, id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, got)
	}
}

func DeleteQuestionHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		if err := store.DeleteQuestion(r.Context(), sub, chi.URLParam(r, "questionID")); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
