package http

import (
	"context"

	"github.com/quiz-note/quiznote/internal/quiz"
	syncx "github.com/quiz-note/quiznote/internal/sync"
)

// Store is the persistence surface the handlers need. *quiz.SQLStore
// satisfies it; tests use an in-memory fake.
type Store interface {
	CreateCertificate(ctx context.Context, ownerID string, c quiz.Certificate) error
	ListCertificates(ctx context.Context, ownerID string) ([]quiz.Certificate, error)
	GetCertificate(ctx context.Context, ownerID, id string) (quiz.Certificate, error)
	UpdateCertificate(ctx context.Context, ownerID string, c quiz.Certificate) error
	DeleteCertificate(ctx context.Context, ownerID, id string) error

	CreateQuestion(ctx context.Context, ownerID string, q quiz.Question) error
	ListQuestions(ctx context.Context, ownerID, certificateID string) ([]quiz.Question, error)
	GetQuestion(ctx context.Context, ownerID, id string) (quiz.Question, error)
	UpdateQuestion(ctx context.Context, ownerID string, q quiz.Question) error
	DeleteQuestion(ctx context.Context, ownerID, id string) error
}

// EventSource reports the newest attempt event visible to an owner.
// *syncx.EventRepo satisfies it.
type EventSource interface {
	Latest(ctx context.Context, ownerID string) (syncx.Event, error)
}
