package quiz

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Certificate is a named grouping of questions. QuestionCount is derived
// from the question table; stores never persist it directly.
type Certificate struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type Option struct {
	ID           string `json:"id"`
	QuestionID   string `json:"question_id,omitempty"`
	Content      string `json:"content"`
	IsCorrect    bool   `json:"is_correct"`
	Explanation  string `json:"explanation"`
	DisplayOrder int    `json:"display_order"`
}

// Question is a multiple-choice prompt. Content and explanations are
// markdown. AttemptCount/CorrectCount/LastAttempt are mutated only through
// RecordAttempt on the question store.
type Question struct {
	ID            string     `json:"id"`
	CertificateID string     `json:"certificate_id"`
	Content       string     `json:"content"`
	Explanation   string     `json:"explanation"`
	Options       []Option   `json:"question_options"`
	CreatedAt     time.Time  `json:"created_at"`
	LastAttempt   *time.Time `json:"last_attempt,omitempty"`
	AttemptCount  int        `json:"attempt_count"`
	CorrectCount  int        `json:"correct_count"`
}

func NewCertificate(name, description string) Certificate {
	return Certificate{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

func NewQuestion(certificateID, content string) Question {
	return Question{
		ID:            uuid.NewString(),
		CertificateID: certificateID,
		Content:       content,
		CreatedAt:     time.Now().UTC(),
	}
}

func NewOption(content string, isCorrect bool) Option {
	return Option{
		ID:        uuid.NewString(),
		Content:   content,
		IsCorrect: isCorrect,
	}
}

var (
	ErrTooFewOptions     = errors.New("a question needs at least 2 options")
	ErrNoCorrectOption   = errors.New("a question needs a correct option")
	ErrManyCorrectOption = errors.New("a question must have exactly one correct option")
	ErrEmptyContent      = errors.New("question content is required")
)

// ValidateQuestion enforces the authoring invariants: non-empty content,
// at least two options, exactly one of them correct.
func ValidateQuestion(q Question) error {
	if q.Content == "" {
		return ErrEmptyContent
	}
	if len(q.Options) < 2 {
		return ErrTooFewOptions
	}
	correct := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			correct++
		}
	}
	switch {
	case correct == 0:
		return ErrNoCorrectOption
	case correct > 1:
		return ErrManyCorrectOption
	}
	return nil
}
