package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrInvalidEmail = errors.New("a valid email is required")
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type MagicLink struct {
	ID         string
	UserID     string
	SecretHash string
	RedirectTo string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

type RefreshToken struct {
	ID         string
	UserID     string
	SecretHash string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

type Store interface {
	UpsertUserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)

	CreateMagicLink(ctx context.Context, l MagicLink) error
	MagicLinkByID(ctx context.Context, id string) (MagicLink, error)
	ConsumeMagicLink(ctx context.Context, id string) error

	CreateRefreshToken(ctx context.Context, t RefreshToken) error
	RefreshTokenByID(ctx context.Context, id string) (RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

// Mailer delivers the sign-in link. The SMTP and log implementations live
// in mailer.go.
type Mailer interface {
	SendMagicLink(ctx context.Context, email, link string) error
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Service implements passwordless email-link sign-in: a single-use link
// token is mailed out, verifying it yields an access JWT plus a rotating
// refresh token. Opaque tokens are "<id>.<secret>" with only a bcrypt hash
// of the secret at rest.
type Service struct {
	store      Store
	mailer     Mailer
	hmac       []byte
	publicURL  string
	accessTTL  time.Duration
	refreshTTL time.Duration
	linkTTL    time.Duration
}

func NewService(store Store, mailer Mailer, secret, publicURL string, accessTTL, refreshTTL, linkTTL time.Duration) *Service {
	return &Service{
		store:      store,
		mailer:     mailer,
		hmac:       []byte(secret),
		publicURL:  strings.TrimSuffix(publicURL, "/"),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		linkTTL:    linkTTL,
	}
}

// RequestMagicLink creates (or finds) the user for the email and mails a
// single-use sign-in link.
func (s *Service) RequestMagicLink(ctx context.Context, email, redirectTo string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}

	user, err := s.store.UpsertUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	id := uuid.NewString()
	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), 12)
	if err != nil {
		return err
	}
	link := MagicLink{
		ID:         id,
		UserID:     user.ID,
		SecretHash: string(hash),
		RedirectTo: redirectTo,
		ExpiresAt:  time.Now().Add(s.linkTTL),
	}
	if err := s.store.CreateMagicLink(ctx, link); err != nil {
		return fmt.Errorf("create magic link: %w", err)
	}

	url := s.publicURL + "/auth/verify?token=" + id + "." + secret
	return s.mailer.SendMagicLink(ctx, email, url)
}

// Verify consumes a magic-link token and opens a session.
func (s *Service) Verify(ctx context.Context, token string) (TokenPair, error) {
	id, secret, ok := splitToken(token)
	if !ok {
		return TokenPair{}, ErrInvalidToken
	}
	link, err := s.store.MagicLinkByID(ctx, id)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if link.ConsumedAt != nil || time.Now().After(link.ExpiresAt) {
		return TokenPair{}, ErrInvalidToken
	}
	if bcrypt.CompareHashAndPassword([]byte(link.SecretHash), []byte(secret)) != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if err := s.store.ConsumeMagicLink(ctx, id); err != nil {
		return TokenPair{}, ErrInvalidToken
	}

	user, err := s.store.UserByID(ctx, link.UserID)
	if err != nil {
		return TokenPair{}, err
	}
	return s.issuePair(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh pair is issued. A bad or expired token yields ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, token string) (TokenPair, error) {
	id, secret, ok := splitToken(token)
	if !ok {
		return TokenPair{}, ErrInvalidToken
	}
	rt, err := s.store.RefreshTokenByID(ctx, id)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if rt.RevokedAt != nil || time.Now().After(rt.ExpiresAt) {
		return TokenPair{}, ErrInvalidToken
	}
	if bcrypt.CompareHashAndPassword([]byte(rt.SecretHash), []byte(secret)) != nil {
		_ = s.store.RevokeRefreshToken(ctx, id)
		return TokenPair{}, ErrInvalidToken
	}
	if err := s.store.RevokeRefreshToken(ctx, id); err != nil {
		return TokenPair{}, err
	}

	user, err := s.store.UserByID(ctx, rt.UserID)
	if err != nil {
		return TokenPair{}, err
	}
	return s.issuePair(ctx, user)
}

// Logout revokes every refresh token of the user. Access tokens simply age
// out.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.store.RevokeUserRefreshTokens(ctx, userID)
}

func (s *Service) IssueAccessToken(user User) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "quiznote",
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.hmac)
}

func (s *Service) ParseAccess(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.hmac, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return c, nil
}

func (s *Service) issuePair(ctx context.Context, user User) (TokenPair, error) {
	access, err := s.IssueAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}

	id := uuid.NewString()
	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), 12)
	if err != nil {
		return TokenPair{}, err
	}
	rt := RefreshToken{
		ID:         id,
		UserID:     user.ID,
		SecretHash: string(hash),
		ExpiresAt:  time.Now().Add(s.refreshTTL),
	}
	if err := s.store.CreateRefreshToken(ctx, rt); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: id + "." + secret,
		User:         user,
	}, nil
}

func splitToken(token string) (id, secret string, ok bool) {
	id, secret, found := strings.Cut(token, ".")
	if !found || id == "" || secret == "" {
		return "", "", false
	}
	return id, secret, true
}
