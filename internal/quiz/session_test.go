package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type fakeQuestionStore struct {
	questions []Question
	fetchErr  error

	recorded  []Question
	recordErr error
}

func (f *fakeQuestionStore) QuestionsByCertificate(context.Context, string) ([]Question, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]Question, len(f.questions))
	copy(out, f.questions)
	return out, nil
}

func (f *fakeQuestionStore) RecordAttempt(_ context.Context, q Question) error {
	f.recorded = append(f.recorded, q)
	return f.recordErr
}

type fakeCertStore struct {
	cert Certificate
	err  error
}

func (f *fakeCertStore) CertificateByID(context.Context, string) (Certificate, error) {
	return f.cert, f.err
}

func testQuestion(n int) Question {
	q := NewQuestion("cert-1", fmt.Sprintf("question %d", n))
	right := NewOption("right", true)
	wrongA := NewOption("wrong a", false)
	wrongB := NewOption("wrong b", false)
	q.Options = []Option{right, wrongA, wrongB}
	return q
}

func newTestEngine(qs *fakeQuestionStore, cs *fakeCertStore) *Engine {
	e := NewEngine(qs, cs, zap.NewNop())
	e.detach = func(f func()) { f() }
	return e
}

func correctOf(t *testing.T, q Question) Option {
	t.Helper()
	for _, o := range q.Options {
		if o.IsCorrect {
			return o
		}
	}
	t.Fatal("no correct option")
	return Option{}
}

func wrongOf(t *testing.T, q Question, skip ...string) Option {
	t.Helper()
	for _, o := range q.Options {
		if o.IsCorrect {
			continue
		}
		skipped := false
		for _, id := range skip {
			if o.ID == id {
				skipped = true
			}
		}
		if !skipped {
			return o
		}
	}
	t.Fatal("no wrong option left")
	return Option{}
}

func TestStartSession(t *testing.T) {
	qs := &fakeQuestionStore{questions: []Question{testQuestion(1), testQuestion(2)}}
	cs := &fakeCertStore{cert: Certificate{ID: "cert-1", Name: "AWS SAA"}}
	e := newTestEngine(qs, cs)

	s := e.StartSession(context.Background(), "user-1", "cert-1")

	st, ok := s.State.(InProgress)
	if !ok {
		t.Fatalf("state = %T, want InProgress", s.State)
	}
	if st.CurrentIndex != 0 || st.Solved {
		t.Errorf("fresh session: index=%d solved=%v", st.CurrentIndex, st.Solved)
	}
	if len(s.Questions) != 2 {
		t.Errorf("snapshot size = %d, want 2", len(s.Questions))
	}
	if s.Certificate == nil || s.Certificate.Name != "AWS SAA" {
		t.Errorf("certificate not attached: %+v", s.Certificate)
	}
	if s.ID == "" || s.UserID != "user-1" {
		t.Errorf("session identity: id=%q user=%q", s.ID, s.UserID)
	}
}

func TestStartSessionNoQuestions(t *testing.T) {
	e := newTestEngine(&fakeQuestionStore{}, &fakeCertStore{})
	s := e.StartSession(context.Background(), "user-1", "cert-1")
	if _, ok := s.State.(NoQuestions); !ok {
		t.Fatalf("state = %T, want NoQuestions", s.State)
	}
}

func TestStartSessionFetchError(t *testing.T) {
	qs := &fakeQuestionStore{fetchErr: errors.New("db down")}
	e := newTestEngine(qs, &fakeCertStore{})
	s := e.StartSession(context.Background(), "user-1", "cert-1")
	if _, ok := s.State.(NoQuestions); !ok {
		t.Fatalf("state = %T, want NoQuestions", s.State)
	}
}

func TestStartSessionCertificateFetchIsBestEffort(t *testing.T) {
	qs := &fakeQuestionStore{questions: []Question{testQuestion(1)}}
	cs := &fakeCertStore{err: errors.New("missing")}
	e := newTestEngine(qs, cs)

	s := e.StartSession(context.Background(), "user-1", "cert-1")
	if _, ok := s.State.(InProgress); !ok {
		t.Fatalf("state = %T, want InProgress", s.State)
	}
	if s.Certificate != nil {
		t.Errorf("certificate should stay nil on fetch failure")
	}
}

func TestSelectOptionFirstTryCorrect(t *testing.T) {
	qs := &fakeQuestionStore{questions: []Question{testQuestion(1)}}
	e := newTestEngine(qs, &fakeCertStore{})
	s := e.StartSession(context.Background(), "user-1", "cert-1")

	q, _ := s.CurrentQuestion()
	e.SelectOption(s, correctOf(t, q).ID)

	st := s.State.(InProgress)
	if !st.Solved {
		t.Fatal("question should be solved")
	}
	if s.CorrectAnswers != 1 {
		t.Errorf("CorrectAnswers = %d, want 1", s.CorrectAnswers)
	}
	got, _ := s.CurrentQuestion()
	if got.AttemptCount != 1 || got.CorrectCount != 1 {
		t.Errorf("counters = %d/%d, want 1/1", got.AttemptCount, got.CorrectCount)
	}
	if got.LastAttempt == nil {
		t.Error("LastAttempt not stamped")
	}
	if len(qs.recorded) != 1 {
		t.Fatalf("persisted %d times, want 1", len(qs.recorded))
	}
	if qs.recorded[0].AttemptCount != 1 || qs.recorded[0].CorrectCount != 1 {
		t.Errorf("persisted counters = %d/%d", qs.recorded[0].AttemptCount, qs.recorded[0].CorrectCount)
	}
}

func TestSelectOptionWrongThenCorrect(t *testing.T) {
	qs := &fakeQuestionStore{questions: []Question{testQuestion(1)}}
	e := newTestEngine(qs, &fakeCertStore{})
	s := e.StartSession(context.Background(), "user-1", "cert-1")

	q, _ := s.CurrentQuestion()
	wrong := wrongOf(t, q)
	e.SelectOption(s, wrong.ID)

	st := s.State.(InProgress)
	if st.Solved {
		t.Fatal("wrong pick must not solve")
	}
	if _, tried := st.TriedIncorrect[wrong.ID]; !tried {
		t.Fatal("wrong option not marked tried")
	}
	got, _ := s.CurrentQuestion()
	if got.AttemptCount != 1 || got.CorrectCount != 0 {
		t.Errorf("after wrong: counters = %d/%d, want 1/0", got.AttemptCount, got.CorrectCount)
	}

	e.SelectOption(s, correctOf(t, q).ID)

	if s.CorrectAnswers != 0 {
		t.Errorf("late solve must not count toward the tally, got %d", s.CorrectAnswers)
	}
	got, _ = s.CurrentQuestion()
	if got.AttemptCount != 2 || got.CorrectCount != 0 {
		t.Errorf("after solve: counters = %d/%d, want 2/0", got.AttemptCount, got.CorrectCount)
	}
	if len(qs.recorded) != 2 {
		t.Errorf("persisted %d times, want 2", len(qs.recorded))
	}
}

func TestSelectOptionRepeatedWrongIsIgnored(t *testing.T) {
	qs := &fakeQuestionStore{questions: []Question{testQuestion(1)}}
	e := newTestEngine(qs, &fakeCertStore{})
	s := e.StartSession(context.Background(), "user-1", "cert-1")

	q, _ := s.CurrentQuestion()
	wrong := wrongOf(t, q)
	e.SelectOption(s, wrong.ID)
	e.SelectOption(s, wrong.ID)

	got, _ := s.CurrentQuestion()
	if got.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", got.AttemptCount)
	}
	if len(qs.recorded) != 1 {
		t.Errorf("persisted %d times, want 1", len(qs.recorded))
	}
}

func TestSecondWrongOptionDoesNotBumpAttempts(t *testing.T) {
	qs := &fakeQuestionStore{questions: []Question{testQuestion(1)}}
	e := newTestEngine(qs, &fakeCertStore{})
	s := e.StartSession(context.Background(), "user-1", "cert-1")

	q, _ := s.CurrentQuestion()
	first := wrongOf(t, q)
	second := wrongOf(t, q, first.ID)
	e.SelectOption(s, first.ID)
	e.SelectOption(s, second.ID)

	got, _ := s.CurrentQuestion()
	if got.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", got.AttemptCount)
	}
	st := s.State.(InProgress)
	if len(st.TriedIncorrect) != 2 {
		t.Errorf("tried set size = %d, want 2", len(st.TriedIncorrect))
	}
	if len(qs.recorded) != 1 {
		t.Errorf("persisted %d times, want 1", len(qs.recorded))
	}
}

func TestSelectOptionUnknownIDIsIgnored(t *testing.T) {
	qs := &fakeQuestionStore{questions: []Question{testQuestion(1)}}
	e := newTestEngine(qs, &fakeCertStore{})
	s := e.StartSession(context.Background(), "user-1", "cert-1")

	e.SelectOption(s, "not-an-option")

	st := s.State.(InProgress)
	if st.Solved || len(st.TriedIncorrect) != 0 {
		t.Errorf("unknown option must be a no-op: %+v", st)
	}
	if len(qs.recorded) != 0 {
		t.Errorf("persisted %d times, want 0", len(qs.recorded))
	}
}

func TestSelectOptionAfterSolvedIsIgnored(t *testing.T) {
	qs := &fakeQuestionStore{questions: []Question{testQuestion(1)}}
	e := newTestEngine(qs, &fakeCertStore{})
	s := e.StartSession(context.Background(), "user-1", "cert-1")

	q, _ := s.CurrentQuestion()
	e.SelectOption(s, correctOf(t, q).ID)
	e.SelectOption(s, wrongOf(t, q).ID)
	e.SelectOption(s, correctOf(t, q).ID)

	got, _ := s.CurrentQuestion()
	if got.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d, want 1", got.AttemptCount)
	}
	if s.CorrectAnswers != 1 {
		t.Errorf("CorrectAnswers = %d, want 1", s.CorrectAnswers)
	}
}

func TestSelectOptionInTerminalStatesIsIgnored(t *testing.T) {
	e := newTestEngine(&fakeQuestionStore{}, &fakeCertStore{})
	s := e.StartSession(context.Background(), "user-1", "cert-1")

	e.SelectOption(s, "anything")
	if _, ok := s.State.(NoQuestions); !ok {
		t.Fatalf("state changed to %T", s.State)
	}

	s.State = Completed{TotalQuestions: 3, CorrectAnswers: 2}
	e.SelectOption(s, "anything")
	e.Next(s)
	if st, ok := s.State.(Completed); !ok || st.CorrectAnswers != 2 {
		t.Fatalf("completed state mutated: %+v", s.State)
	}
}

func TestNextRequiresSolved(t *testing.T) {
	qs := &fakeQuestionStore{questions: []Question{testQuestion(1), testQuestion(2)}}
	e := newTestEngine(qs, &fakeCertStore{})
	s := e.StartSession(context.Background(), "user-1", "cert-1")

	e.Next(s)
	if st := s.State.(InProgress); st.CurrentIndex != 0 {
		t.Errorf("Next on unsolved question moved the cursor to %d", st.CurrentIndex)
	}
}

func TestNextAdvancesAndCompletes(t *testing.T) {
	qs := &fakeQuestionStore{questions: []Question{testQuestion(1), testQuestion(2), testQuestion(3)}}
	e := newTestEngine(qs, &fakeCertStore{})
	s := e.StartSession(context.Background(), "user-1", "cert-1")

	// solve 1 and 2 first try, miss once on 3
	for i := 0; i < 2; i++ {
		q, _ := s.CurrentQuestion()
		e.SelectOption(s, correctOf(t, q).ID)
		e.Next(s)
	}
	st := s.State.(InProgress)
	if st.CurrentIndex != 2 || st.Solved || len(st.TriedIncorrect) != 0 {
		t.Fatalf("cursor state after two advances: %+v", st)
	}

	q, _ := s.CurrentQuestion()
	e.SelectOption(s, wrongOf(t, q).ID)
	e.SelectOption(s, correctOf(t, q).ID)
	e.Next(s)

	done, ok := s.State.(Completed)
	if !ok {
		t.Fatalf("state = %T, want Completed", s.State)
	}
	if done.TotalQuestions != 3 || done.CorrectAnswers != 2 {
		t.Errorf("result = %d/%d, want 2/3", done.CorrectAnswers, done.TotalQuestions)
	}
	if done.Percentage() != 66 {
		t.Errorf("percentage = %d, want 66", done.Percentage())
	}
}

func TestPercentageZeroTotal(t *testing.T) {
	if p := (Completed{}).Percentage(); p != 0 {
		t.Errorf("percentage of empty result = %d, want 0", p)
	}
}

func TestPersistFailureDoesNotAffectSession(t *testing.T) {
	qs := &fakeQuestionStore{
		questions: []Question{testQuestion(1)},
		recordErr: errors.New("db down"),
	}
	e := newTestEngine(qs, &fakeCertStore{})
	s := e.StartSession(context.Background(), "user-1", "cert-1")

	q, _ := s.CurrentQuestion()
	e.SelectOption(s, correctOf(t, q).ID)

	st := s.State.(InProgress)
	if !st.Solved || s.CorrectAnswers != 1 {
		t.Errorf("persist failure leaked into session state: %+v tally=%d", st, s.CorrectAnswers)
	}
}

func TestStartSessionShuffles(t *testing.T) {
	questions := make([]Question, 8)
	for i := range questions {
		questions[i] = testQuestion(i)
	}
	qs := &fakeQuestionStore{questions: questions}
	e := newTestEngine(qs, &fakeCertStore{})

	orders := map[string]struct{}{}
	for i := 0; i < 20; i++ {
		s := e.StartSession(context.Background(), "user-1", "cert-1")
		ids := make([]string, len(s.Questions))
		for j, q := range s.Questions {
			ids[j] = q.ID
		}
		orders[strings.Join(ids, ",")] = struct{}{}
	}
	if len(orders) < 2 {
		t.Error("20 sessions over 8 questions produced a single order")
	}
}
