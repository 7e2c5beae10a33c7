package syncx

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const TypeAttemptRecorded = "attempt.recorded"

var ErrEmptyLog = errors.New("event log is empty")

type Event struct {
	Offset    int64  `json:"offset"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// EventRepo is an append-only trail of attempt events. Clients use the
// latest offset to tell whether a local copy of the data is stale; the quiz
// engine itself never reads it.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	siteID := e.SiteID
	if siteID == "" {
		siteID = "local"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		siteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// Latest returns the owner's most recent event, or ErrEmptyLog. Events are
// tied to an owner through the question they key; events for deleted
// questions fall out of view with the cascade.
func (r *EventRepo) Latest(ctx context.Context, ownerID string) (Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT e."offset", e.site_id, e.typ, e.key, e.data, e.created_at
		 FROM event_log e
		 JOIN questions q ON q.id = e.key
		 JOIN certificates c ON c.id = q.certificate_id
		 WHERE c.user_id=$1
		 ORDER BY e."offset" DESC LIMIT 1`, ownerID)
	var e Event
	if err := row.Scan(&e.Offset, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, ErrEmptyLog
		}
		return Event{}, err
	}
	return e, nil
}
