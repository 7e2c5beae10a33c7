package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quiz-note/quiznote/internal/auth"
	"github.com/quiz-note/quiznote/internal/markdown"
	"github.com/quiz-note/quiznote/internal/quiz"
)

// sessionView is the wire shape of a quiz session. Correct answers stay
// hidden until the learner solves the question, so a client cannot read
// them out of the payload ahead of time.
type sessionView struct {
	ID            string           `json:"id"`
	CertificateID string           `json:"certificate_id"`
	Certificate   *certificateView `json:"certificate,omitempty"`
	State         string           `json:"state"`
	Progress      *progressView    `json:"progress,omitempty"`
	Question      *questionView    `json:"question,omitempty"`
	Result        *resultView      `json:"result,omitempty"`
}

type certificateView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type progressView struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

type questionView struct {
	ID              string       `json:"id"`
	Content         string       `json:"content"`
	ContentHTML     string       `json:"content_html"`
	Explanation     string       `json:"explanation,omitempty"`
	ExplanationHTML string       `json:"explanation_html,omitempty"`
	Solved          bool         `json:"solved"`
	Options         []optionView `json:"question_options"`
}

type optionView struct {
	ID              string `json:"id"`
	Content         string `json:"content"`
	ContentHTML     string `json:"content_html"`
	TriedIncorrect  bool   `json:"tried_incorrect"`
	Correct         *bool  `json:"is_correct,omitempty"`
	Explanation     string `json:"explanation,omitempty"`
	ExplanationHTML string `json:"explanation_html,omitempty"`
}

type resultView struct {
	TotalQuestions int `json:"total_questions"`
	CorrectAnswers int `json:"correct_answers"`
	Percentage     int `json:"percentage"`
}

func renderSession(s *quiz.Session) sessionView {
	v := sessionView{
		ID:            s.ID,
		CertificateID: s.CertificateID,
	}
	if s.Certificate != nil {
		v.Certificate = &certificateView{
			ID:          s.Certificate.ID,
			Name:        s.Certificate.Name,
			Description: s.Certificate.Description,
		}
	}
	switch st := s.State.(type) {
	case quiz.Loading:
		v.State = "loading"
	case quiz.NoQuestions:
		v.State = "no_questions"
	case quiz.InProgress:
		v.State = "in_progress"
		v.Progress = &progressView{Current: st.CurrentIndex + 1, Total: len(s.Questions)}
		if q, ok := s.CurrentQuestion(); ok {
			v.Question = renderQuestion(q, st)
		}
	case quiz.Completed:
		v.State = "completed"
		v.Result = &resultView{
			TotalQuestions: st.TotalQuestions,
			CorrectAnswers: st.CorrectAnswers,
			Percentage:     st.Percentage(),
		}
	}
	return v
}

func renderQuestion(q quiz.Question, st quiz.InProgress) *questionView {
	qv := &questionView{
		ID:          q.ID,
		Content:     q.Content,
		ContentHTML: markdown.Render(q.Content),
		Solved:      st.Solved,
	}
	if st.Solved {
		qv.Explanation = q.Explanation
		qv.ExplanationHTML = markdown.Render(q.Explanation)
	}
	for _, o := range q.Options {
		ov := optionView{
			ID:          o.ID,
			Content:     o.Content,
			ContentHTML: markdown.Render(o.Content),
		}
		_, tried := st.TriedIncorrect[o.ID]
		ov.TriedIncorrect = tried
		if st.Solved {
			correct := o.IsCorrect
			ov.Correct = &correct
		}
		// option explanations surface once the learner has feedback on
		// that option, either by solving or by trying it wrong
		if st.Solved || tried {
			ov.Explanation = o.Explanation
			ov.ExplanationHTML = markdown.Render(o.Explanation)
		}
		qv.Options = append(qv.Options, ov)
	}
	return qv
}

// POST /api/quiz/sessions  { "certificate_id": "..." }
func StartSessionHandler(store Store, sessions *quiz.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req struct {
			CertificateID string `json:"certificate_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if _, err := store.GetCertificate(r.Context(), sub, req.CertificateID); err != nil {
			writeStoreError(w, err)
			return
		}
		s := sessions.Start(r.Context(), sub, req.CertificateID)
		writeJSON(w, http.StatusCreated, renderSession(s))
	}
}

// GET /api/quiz/sessions/{sessionID}
func GetSessionHandler(sessions *quiz.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		s, ok := sessions.Get(chi.URLParam(r, "sessionID"), sub)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, renderSession(s))
	}
}

// POST /api/quiz/sessions/{sessionID}/select  { "option_id": "..." }
func SelectOptionHandler(sessions *quiz.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req struct {
			OptionID string `json:"option_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		s, ok := sessions.SelectOption(chi.URLParam(r, "sessionID"), sub, req.OptionID)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, renderSession(s))
	}
}

// POST /api/quiz/sessions/{sessionID}/next
func NextQuestionHandler(sessions *quiz.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		s, ok := sessions.Next(chi.URLParam(r, "sessionID"), sub)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, renderSession(s))
	}
}

// POST /api/quiz/sessions/{sessionID}/restart
//
// Restarting replaces the old session wholesale: new id, new shuffle,
// zeroed tally. The old session id stops resolving.
func RestartSessionHandler(sessions *quiz.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		old, ok := sessions.Get(chi.URLParam(r, "sessionID"), sub)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s := sessions.Start(r.Context(), sub, old.CertificateID)
		writeJSON(w, http.StatusCreated, renderSession(s))
	}
}
