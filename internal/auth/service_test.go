package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fakeStore struct {
	users   map[string]User // keyed by id
	byEmail map[string]string
	links   map[string]MagicLink
	tokens  map[string]RefreshToken
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]User{},
		byEmail: map[string]string{},
		links:   map[string]MagicLink{},
		tokens:  map[string]RefreshToken{},
	}
}

func (f *fakeStore) UpsertUserByEmail(_ context.Context, email string) (User, error) {
	if id, ok := f.byEmail[email]; ok {
		return f.users[id], nil
	}
	u := User{ID: "user-" + email, Email: email}
	f.users[u.ID] = u
	f.byEmail[email] = u.ID
	return u, nil
}

func (f *fakeStore) UserByID(_ context.Context, id string) (User, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, errors.New("no such user")
	}
	return u, nil
}

func (f *fakeStore) CreateMagicLink(_ context.Context, l MagicLink) error {
	f.links[l.ID] = l
	return nil
}

func (f *fakeStore) MagicLinkByID(_ context.Context, id string) (MagicLink, error) {
	l, ok := f.links[id]
	if !ok {
		return MagicLink{}, errors.New("no such link")
	}
	return l, nil
}

func (f *fakeStore) ConsumeMagicLink(_ context.Context, id string) error {
	l, ok := f.links[id]
	if !ok || l.ConsumedAt != nil {
		return errors.New("already consumed")
	}
	now := time.Now()
	l.ConsumedAt = &now
	f.links[id] = l
	return nil
}

func (f *fakeStore) CreateRefreshToken(_ context.Context, t RefreshToken) error {
	f.tokens[t.ID] = t
	return nil
}

func (f *fakeStore) RefreshTokenByID(_ context.Context, id string) (RefreshToken, error) {
	t, ok := f.tokens[id]
	if !ok {
		return RefreshToken{}, errors.New("no such token")
	}
	return t, nil
}

func (f *fakeStore) RevokeRefreshToken(_ context.Context, id string) error {
	t, ok := f.tokens[id]
	if !ok {
		return errors.New("no such token")
	}
	now := time.Now()
	t.RevokedAt = &now
	f.tokens[id] = t
	return nil
}

func (f *fakeStore) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	now := time.Now()
	for id, t := range f.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			f.tokens[id] = t
		}
	}
	return nil
}

type fakeMailer struct {
	email string
	link  string
}

func (f *fakeMailer) SendMagicLink(_ context.Context, email, link string) error {
	f.email = email
	f.link = link
	return nil
}

func newTestService(store Store, mailer Mailer) *Service {
	return NewService(store, mailer, "test-secret", "http://localhost:8080",
		time.Hour, 24*time.Hour, 15*time.Minute)
}

func linkToken(t *testing.T, link string) string {
	t.Helper()
	_, token, ok := strings.Cut(link, "token=")
	if !ok {
		t.Fatalf("no token in link %q", link)
	}
	return token
}

func TestMagicLinkRoundTrip(t *testing.T) {
	store := newFakeStore()
	mailer := &fakeMailer{}
	svc := newTestService(store, mailer)
	ctx := context.Background()

	if err := svc.RequestMagicLink(ctx, "  Alice@Example.COM ", "/app"); err != nil {
		t.Fatalf("RequestMagicLink: %v", err)
	}
	if mailer.email != "alice@example.com" {
		t.Errorf("mail sent to %q, want normalized address", mailer.email)
	}
	if !strings.HasPrefix(mailer.link, "http://localhost:8080/auth/verify?token=") {
		t.Fatalf("unexpected link %q", mailer.link)
	}

	pair, err := svc.Verify(ctx, linkToken(t, mailer.link))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if pair.User.Email != "alice@example.com" {
		t.Errorf("pair user = %+v", pair.User)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("incomplete token pair")
	}

	claims, err := svc.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != pair.User.ID || claims.Email != "alice@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestMagicLinkIsSingleUse(t *testing.T) {
	store := newFakeStore()
	mailer := &fakeMailer{}
	svc := newTestService(store, mailer)
	ctx := context.Background()

	if err := svc.RequestMagicLink(ctx, "a@b.c", ""); err != nil {
		t.Fatal(err)
	}
	token := linkToken(t, mailer.link)
	if _, err := svc.Verify(ctx, token); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := svc.Verify(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("second verify = %v, want ErrInvalidToken", err)
	}
}

func TestMagicLinkExpiry(t *testing.T) {
	store := newFakeStore()
	mailer := &fakeMailer{}
	svc := NewService(store, mailer, "test-secret", "http://localhost:8080",
		time.Hour, 24*time.Hour, -time.Minute)
	ctx := context.Background()

	if err := svc.RequestMagicLink(ctx, "a@b.c", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Verify(ctx, linkToken(t, mailer.link)); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired verify = %v, want ErrInvalidToken", err)
	}
}

func TestRequestMagicLinkRejectsBadEmail(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeMailer{})
	for _, email := range []string{"", "   ", "not-an-email"} {
		if err := svc.RequestMagicLink(context.Background(), email, ""); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("RequestMagicLink(%q) = %v, want ErrInvalidEmail", email, err)
		}
	}
}

func TestRefreshRotates(t *testing.T) {
	store := newFakeStore()
	mailer := &fakeMailer{}
	svc := newTestService(store, mailer)
	ctx := context.Background()

	if err := svc.RequestMagicLink(ctx, "a@b.c", ""); err != nil {
		t.Fatal(err)
	}
	pair, err := svc.Verify(ctx, linkToken(t, mailer.link))
	if err != nil {
		t.Fatal(err)
	}

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Error("refresh token was not rotated")
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("replayed refresh = %v, want ErrInvalidToken", err)
	}
	if _, err := svc.Refresh(ctx, next.RefreshToken); err != nil {
		t.Errorf("rotated token should work: %v", err)
	}
}

func TestRefreshWithWrongSecretRevokes(t *testing.T) {
	store := newFakeStore()
	mailer := &fakeMailer{}
	svc := newTestService(store, mailer)
	ctx := context.Background()

	if err := svc.RequestMagicLink(ctx, "a@b.c", ""); err != nil {
		t.Fatal(err)
	}
	pair, err := svc.Verify(ctx, linkToken(t, mailer.link))
	if err != nil {
		t.Fatal(err)
	}

	id, _, _ := strings.Cut(pair.RefreshToken, ".")
	if _, err := svc.Refresh(ctx, id+".guessed-secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("guessed secret = %v, want ErrInvalidToken", err)
	}
	// the real token is burned too
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token survived a guessed-secret attempt: %v", err)
	}
}

func TestLogoutRevokesAllTokens(t *testing.T) {
	store := newFakeStore()
	mailer := &fakeMailer{}
	svc := newTestService(store, mailer)
	ctx := context.Background()

	if err := svc.RequestMagicLink(ctx, "a@b.c", ""); err != nil {
		t.Fatal(err)
	}
	pair, err := svc.Verify(ctx, linkToken(t, mailer.link))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Logout(ctx, pair.User.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh after logout = %v, want ErrInvalidToken", err)
	}
}

func TestParseAccessRejectsWrongSigningMethod(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeMailer{})

	claims := &Claims{
		Email: "a@b.c",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ParseAccess(token); err == nil {
		t.Error("token with a non-HS256 method was accepted")
	}
}

func TestParseAccessRejectsForgedToken(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeMailer{})
	other := NewService(newFakeStore(), &fakeMailer{}, "other-secret", "http://localhost:8080",
		time.Hour, 24*time.Hour, 15*time.Minute)

	token, err := other.IssueAccessToken(User{ID: "u1", Email: "a@b.c"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ParseAccess(token); err == nil {
		t.Error("token signed with another secret was accepted")
	}
}
