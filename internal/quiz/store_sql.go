package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	syncx "github.com/quiz-note/quiznote/internal/sync"
)

var (
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrQuestionNotFound    = errors.New("question not found")
)

// SQLStore persists certificates, questions and options, and implements
// the engine's QuestionStore and CertificateStore. All authoring methods
// are scoped to the owning user; the engine-facing reads are unscoped and
// called only after the handler has checked ownership.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	events *syncx.EventRepo
}

func NewSQLStore(db *sql.DB, driver string, events *syncx.EventRepo) *SQLStore {
	return &SQLStore{db: db, driver: driver, events: events}
}

// --- certificates ---

func (s *SQLStore) CreateCertificate(ctx context.Context, ownerID string, c Certificate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO certificates (id, user_id, name, description, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		c.ID, ownerID, c.Name, c.Description, c.CreatedAt.Unix())
	return err
}

func (s *SQLStore) ListCertificates(ctx context.Context, ownerID string) ([]Certificate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.description, c.created_at, COUNT(q.id)
		 FROM certificates c
		 LEFT JOIN questions q ON q.certificate_id = c.id
		 WHERE c.user_id=$1
		 GROUP BY c.id, c.name, c.description, c.created_at
		 ORDER BY c.created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Certificate{}
	for rows.Next() {
		var (
			c       Certificate
			created int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &created, &c.QuestionCount); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetCertificate(ctx context.Context, ownerID, id string) (Certificate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.name, c.description, c.created_at, COUNT(q.id)
		 FROM certificates c
		 LEFT JOIN questions q ON q.certificate_id = c.id
		 WHERE c.user_id=$1 AND c.id=$2
		 GROUP BY c.id, c.name, c.description, c.created_at`, ownerID, id)
	var (
		c       Certificate
		created int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &created, &c.QuestionCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Certificate{}, ErrCertificateNotFound
		}
		return Certificate{}, err
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return c, nil
}

func (s *SQLStore) UpdateCertificate(ctx context.Context, ownerID string, c Certificate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE certificates SET name=$1, description=$2 WHERE id=$3 AND user_id=$4`,
		c.Name, c.Description, c.ID, ownerID)
	if err != nil {
		return err
	}
	return oneAffected(res, ErrCertificateNotFound)
}

func (s *SQLStore) DeleteCertificate(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM certificates WHERE id=$1 AND user_id=$2`, id, ownerID)
	if err != nil {
		return err
	}
	return oneAffected(res, ErrCertificateNotFound)
}

// --- questions ---

func (s *SQLStore) CreateQuestion(ctx context.Context, ownerID string, q Question) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM certificates WHERE id=$1 AND user_id=$2`,
		q.CertificateID, ownerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCertificateNotFound
	}
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO questions (id, certificate_id, content, explanation, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		q.ID, q.CertificateID, q.Content, q.Explanation, q.CreatedAt.Unix())
	if err != nil {
		return err
	}
	if err := insertOptions(ctx, tx, q.ID, q.Options); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) ListQuestions(ctx context.Context, ownerID, certificateID string) ([]Question, error) {
	if _, err := s.GetCertificate(ctx, ownerID, certificateID); err != nil {
		return nil, err
	}
	return s.QuestionsByCertificate(ctx, certificateID)
}

func (s *SQLStore) GetQuestion(ctx context.Context, ownerID, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT q.id, q.certificate_id, q.content, q.explanation,
		        q.attempt_count, q.correct_count, q.last_attempt, q.created_at
		 FROM questions q
		 JOIN certificates c ON c.id = q.certificate_id
		 WHERE q.id=$1 AND c.user_id=$2`, id, ownerID)
	q, err := scanQuestion(row)
	if err != nil {
		return Question{}, err
	}
	opts, err := s.optionsByQuestion(ctx, q.ID)
	if err != nil {
		return Question{}, err
	}
	q.Options = opts
	return q, nil
}

// UpdateQuestion replaces content, explanation and the option set; the
// attempt counters are untouched (only RecordAttempt moves them).
func (s *SQLStore) UpdateQuestion(ctx context.Context, ownerID string, q Question) error {
	if _, err := s.GetQuestion(ctx, ownerID, q.ID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE questions SET content=$1, explanation=$2 WHERE id=$3`,
		q.Content, q.Explanation, q.ID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM question_options WHERE question_id=$1`, q.ID); err != nil {
		return err
	}
	if err := insertOptions(ctx, tx, q.ID, q.Options); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM questions WHERE id=$1 AND certificate_id IN
		   (SELECT id FROM certificates WHERE user_id=$2)`, id, ownerID)
	if err != nil {
		return err
	}
	return oneAffected(res, ErrQuestionNotFound)
}

// --- engine collaborators ---

func (s *SQLStore) CertificateByID(ctx context.Context, id string) (Certificate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM certificates WHERE id=$1`, id)
	var (
		c       Certificate
		created int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Certificate{}, ErrCertificateNotFound
		}
		return Certificate{}, err
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return c, nil
}

func (s *SQLStore) QuestionsByCertificate(ctx context.Context, certificateID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, certificate_id, content, explanation,
		        attempt_count, correct_count, last_attempt, created_at
		 FROM questions WHERE certificate_id=$1 ORDER BY created_at DESC`, certificateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []Question{}
	index := map[string]int{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	optRows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.question_id, o.content, o.is_correct, o.explanation, o.display_order
		 FROM question_options o
		 JOIN questions q ON q.id = o.question_id
		 WHERE q.certificate_id=$1
		 ORDER BY o.display_order`, certificateID)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()

	for optRows.Next() {
		var (
			o       Option
			correct int
		)
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.Content, &correct, &o.Explanation, &o.DisplayOrder); err != nil {
			return nil, err
		}
		o.IsCorrect = correct != 0
		if i, ok := index[o.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, o)
		}
	}
	return questions, optRows.Err()
}

// RecordAttempt upserts the attempt stats of a question. Counters only move
// forward: a stale in-session copy racing a sync from another device can
// never decrease what is persisted. Every applied update is appended to the
// event log.
func (s *SQLStore) RecordAttempt(ctx context.Context, q Question) error {
	greatest := "GREATEST"
	if s.driver == "sqlite" {
		greatest = "MAX"
	}
	var lastAttempt sql.NullInt64
	if q.LastAttempt != nil {
		lastAttempt = sql.NullInt64{Int64: q.LastAttempt.Unix(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE questions SET
		   attempt_count=%[1]s(attempt_count, $1),
		   correct_count=%[1]s(correct_count, $2),
		   last_attempt=$3
		 WHERE id=$4`, greatest),
		q.AttemptCount, q.CorrectCount, lastAttempt, q.ID)
	if err != nil {
		return err
	}
	if err := oneAffected(res, ErrQuestionNotFound); err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]any{
		"question_id":    q.ID,
		"certificate_id": q.CertificateID,
		"attempt_count":  q.AttemptCount,
		"correct_count":  q.CorrectCount,
	})
	if err := s.events.Append(ctx, syncx.Event{
		Type:     syncx.TypeAttemptRecorded,
		Key:      q.ID,
		DataJSON: string(payload),
	}); err != nil {
		return fmt.Errorf("append attempt event: %w", err)
	}
	return nil
}

// --- helpers ---

type rowScanner interface{ Scan(dest ...any) error }

func scanQuestion(row rowScanner) (Question, error) {
	var (
		q           Question
		lastAttempt sql.NullInt64
		created     int64
	)
	err := row.Scan(&q.ID, &q.CertificateID, &q.Content, &q.Explanation,
		&q.AttemptCount, &q.CorrectCount, &lastAttempt, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, ErrQuestionNotFound
		}
		return Question{}, err
	}
	q.CreatedAt = time.Unix(created, 0).UTC()
	if lastAttempt.Valid {
		t := time.Unix(lastAttempt.Int64, 0).UTC()
		q.LastAttempt = &t
	}
	return q, nil
}

func insertOptions(ctx context.Context, tx *sql.Tx, questionID string, opts []Option) error {
	for i, o := range opts {
		correct := 0
		if o.IsCorrect {
			correct = 1
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO question_options (id, question_id, content, is_correct, explanation, display_order)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, questionID, o.Content, correct, o.Explanation, i)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) optionsByQuestion(ctx context.Context, questionID string) ([]Option, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_id, content, is_correct, explanation, display_order
		 FROM question_options WHERE question_id=$1 ORDER BY display_order`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	opts := []Option{}
	for rows.Next() {
		var (
			o       Option
			correct int
		)
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Content, &correct, &o.Explanation, &o.DisplayOrder); err != nil {
			return nil, err
		}
		o.IsCorrect = correct != 0
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

func oneAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
