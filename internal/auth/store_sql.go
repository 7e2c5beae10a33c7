package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SQLStore persists users, magic links and refresh tokens.
type SQLStore struct{ db *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) UpsertUserByEmail(ctx context.Context, email string) (User, error) {
	u, err := s.userByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, err
	}

	u = User{ID: uuid.NewString(), Email: email}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, created_at) VALUES ($1,$2,$3)`,
		u.ID, u.Email, time.Now().Unix())
	if err != nil {
		// concurrent signup with the same email
		if existing, err2 := s.userByEmail(ctx, email); err2 == nil {
			return existing, nil
		}
		return User{}, err
	}
	return u, nil
}

func (s *SQLStore) userByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email FROM users WHERE email=$1`, email).Scan(&u.ID, &u.Email)
	return u, err
}

func (s *SQLStore) UserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email FROM users WHERE id=$1`, id).Scan(&u.ID, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidToken
	}
	return u, err
}

func (s *SQLStore) CreateMagicLink(ctx context.Context, l MagicLink) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO magic_links (id, user_id, secret_hash, redirect_to, expires_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		l.ID, l.UserID, l.SecretHash, l.RedirectTo, l.ExpiresAt.Unix())
	return err
}

func (s *SQLStore) MagicLinkByID(ctx context.Context, id string) (MagicLink, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, secret_hash, redirect_to, expires_at, consumed_at
		 FROM magic_links WHERE id=$1`, id)
	var (
		l        MagicLink
		expires  int64
		consumed sql.NullInt64
	)
	if err := row.Scan(&l.ID, &l.UserID, &l.SecretHash, &l.RedirectTo, &expires, &consumed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MagicLink{}, ErrInvalidToken
		}
		return MagicLink{}, err
	}
	l.ExpiresAt = time.Unix(expires, 0)
	if consumed.Valid {
		t := time.Unix(consumed.Int64, 0)
		l.ConsumedAt = &t
	}
	return l, nil
}

// ConsumeMagicLink marks the link used; a second consume fails, keeping the
// link single-use even under a double click on the email.
func (s *SQLStore) ConsumeMagicLink(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE magic_links SET consumed_at=$1 WHERE id=$2 AND consumed_at IS NULL`,
		time.Now().Unix(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidToken
	}
	return nil
}

func (s *SQLStore) CreateRefreshToken(ctx context.Context, t RefreshToken) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, secret_hash, expires_at)
		 VALUES ($1,$2,$3,$4)`,
		t.ID, t.UserID, t.SecretHash, t.ExpiresAt.Unix())
	return err
}

func (s *SQLStore) RefreshTokenByID(ctx context.Context, id string) (RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, secret_hash, expires_at, revoked_at
		 FROM refresh_tokens WHERE id=$1`, id)
	var (
		t       RefreshToken
		expires int64
		revoked sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.SecretHash, &expires, &revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RefreshToken{}, ErrInvalidToken
		}
		return RefreshToken{}, err
	}
	t.ExpiresAt = time.Unix(expires, 0)
	if revoked.Valid {
		at := time.Unix(revoked.Int64, 0)
		t.RevokedAt = &at
	}
	return t, nil
}

func (s *SQLStore) RevokeRefreshToken(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at=$1 WHERE id=$2 AND revoked_at IS NULL`,
		time.Now().Unix(), id)
	return err
}

func (s *SQLStore) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at=$1 WHERE user_id=$2 AND revoked_at IS NULL`,
		time.Now().Unix(), userID)
	return err
}
