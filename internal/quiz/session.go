package quiz

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// QuestionStore supplies the questions of a certificate and accepts
// attempt-stat updates. RecordAttempt must tolerate being called after the
// session that issued it is gone.
type QuestionStore interface {
	QuestionsByCertificate(ctx context.Context, certificateID string) ([]Question, error)
	RecordAttempt(ctx context.Context, q Question) error
}

// CertificateStore supplies certificate metadata for the session banner.
type CertificateStore interface {
	CertificateByID(ctx context.Context, id string) (Certificate, error)
}

// State is the session state machine. Exactly one variant is active at a
// time; transitions happen only through Engine methods.
type State interface{ quizState() }

// Loading is the initial state before the question snapshot is available.
type Loading struct{}

// NoQuestions is terminal: the certificate has no questions (or the fetch
// failed, which the session does not distinguish).
type NoQuestions struct{}

// InProgress tracks the question under the cursor, the wrong options
// already tried on it, and whether it has been solved.
type InProgress struct {
	CurrentIndex   int
	TriedIncorrect map[string]struct{}
	Solved         bool
}

// Completed is terminal: the snapshot is exhausted.
type Completed struct {
	TotalQuestions int
	CorrectAnswers int
}

func (Loading) quizState()     {}
func (NoQuestions) quizState() {}
func (InProgress) quizState()  {}
func (Completed) quizState()   {}

// Percentage reports first-try accuracy as a truncated integer percent.
func (c Completed) Percentage() int {
	if c.TotalQuestions == 0 {
		return 0
	}
	return c.CorrectAnswers * 100 / c.TotalQuestions
}

// Session is one run-through of a shuffled question snapshot. The snapshot
// is immutable for the session's lifetime even if the backing store
// changes; restarting builds a brand-new session.
type Session struct {
	ID             string
	UserID         string
	CertificateID  string
	Certificate    *Certificate
	Questions      []Question
	State          State
	CorrectAnswers int
	StartedAt      time.Time

	lastActive time.Time
}

// clone copies everything a later transition may touch: the question
// snapshot, the state variant and its tried-option set. Options and the
// certificate are immutable after StartSession and stay shared.
func (s *Session) clone() *Session {
	c := *s
	c.Questions = append([]Question(nil), s.Questions...)
	if st, ok := s.State.(InProgress); ok {
		tried := make(map[string]struct{}, len(st.TriedIncorrect))
		for id := range st.TriedIncorrect {
			tried[id] = struct{}{}
		}
		st.TriedIncorrect = tried
		c.State = st
	}
	return &c
}

// CurrentQuestion returns the question under the cursor while in progress.
func (s *Session) CurrentQuestion() (Question, bool) {
	st, ok := s.State.(InProgress)
	if !ok || st.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[st.CurrentIndex], true
}

// Engine owns the session transition rules. It holds no session state
// itself; callers pass the session into each transition.
type Engine struct {
	questions    QuestionStore
	certificates CertificateStore
	log          *zap.Logger

	persistTimeout time.Duration
	detach         func(func())
}

func NewEngine(questions QuestionStore, certificates CertificateStore, log *zap.Logger) *Engine {
	return &Engine{
		questions:      questions,
		certificates:   certificates,
		log:            log,
		persistTimeout: 10 * time.Second,
		detach:         func(f func()) { go f() },
	}
}

// StartSession fetches the certificate and its questions concurrently and
// produces a new session over a freshly shuffled snapshot. The certificate
// fetch is best-effort; a failed or empty question fetch yields
// NoQuestions.
func (e *Engine) StartSession(ctx context.Context, userID, certificateID string) *Session {
	s := &Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		CertificateID: certificateID,
		State:         Loading{},
		StartedAt:     time.Now(),
	}
	s.lastActive = s.StartedAt

	var (
		cert      Certificate
		certErr   error
		questions []Question
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cert, certErr = e.certificates.CertificateByID(gctx, certificateID)
		return nil // banner metadata only, never blocks the quiz
	})
	g.Go(func() error {
		var err error
		questions, err = e.questions.QuestionsByCertificate(gctx, certificateID)
		return err
	})
	if err := g.Wait(); err != nil {
		e.log.Warn("question fetch failed, session has no questions",
			zap.String("certificate_id", certificateID), zap.Error(err))
		s.State = NoQuestions{}
		return s
	}
	if certErr == nil {
		s.Certificate = &cert
	}
	if len(questions) == 0 {
		s.State = NoQuestions{}
		return s
	}

	rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	s.Questions = questions
	s.State = InProgress{CurrentIndex: 0, TriedIncorrect: map[string]struct{}{}}
	return s
}

// SelectOption applies an option click to the current question. A correct
// pick solves the question; only a first-touch correct pick counts toward
// the session tally. A wrong pick marks the option as tried, and only the
// first wrong pick on a question bumps its attempt counter. Clicks in any
// other state, and repeat clicks on a tried option, are ignored.
func (e *Engine) SelectOption(s *Session, optionID string) {
	st, ok := s.State.(InProgress)
	if !ok || st.Solved || st.CurrentIndex >= len(s.Questions) {
		return
	}
	q := &s.Questions[st.CurrentIndex]
	opt, ok := findOption(*q, optionID)
	if !ok {
		return
	}

	now := time.Now().UTC()
	if opt.IsCorrect {
		if len(st.TriedIncorrect) == 0 {
			s.CorrectAnswers++
			q.CorrectCount++
		}
		q.AttemptCount++
		q.LastAttempt = &now
		st.Solved = true
		s.State = st
		e.persistStats(*q)
		return
	}

	if _, tried := st.TriedIncorrect[optionID]; tried {
		return
	}
	st.TriedIncorrect[optionID] = struct{}{}
	if len(st.TriedIncorrect) == 1 {
		// only the first wrong guess counts toward the attempt denominator
		q.AttemptCount++
		q.LastAttempt = &now
		e.persistStats(*q)
	}
	s.State = st
}

// Next advances past a solved question, or finalizes the session once the
// snapshot is exhausted. No-op unless the current question is solved.
func (e *Engine) Next(s *Session) {
	st, ok := s.State.(InProgress)
	if !ok || !st.Solved {
		return
	}
	if st.CurrentIndex+1 >= len(s.Questions) {
		s.State = Completed{
			TotalQuestions: len(s.Questions),
			CorrectAnswers: s.CorrectAnswers,
		}
		return
	}
	s.State = InProgress{
		CurrentIndex:   st.CurrentIndex + 1,
		TriedIncorrect: map[string]struct{}{},
	}
}

// persistStats hands the updated counters to the question store on a
// detached task. The session never waits on or reacts to the result; a
// failure here loses a stat update, not learner progress.
func (e *Engine) persistStats(q Question) {
	e.detach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.persistTimeout)
		defer cancel()
		if err := e.questions.RecordAttempt(ctx, q); err != nil {
			e.log.Warn("record attempt failed",
				zap.String("question_id", q.ID), zap.Error(err))
		}
	})
}

func findOption(q Question, optionID string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == optionID {
			return o, true
		}
	}
	return Option{}, false
}
