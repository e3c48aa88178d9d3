package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/kasirku/kasirku/internal/roles"
	"github.com/kasirku/kasirku/internal/shared"
)

// DefaultRole is assigned to self-registered users.
const DefaultRole = roles.Cashier

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	MinPasswordLength int
	CacheTTL          time.Duration
	CacheSize         int
}

// Service wraps authentication business rules and session verification.
type Service struct {
	repo       Repository
	store      *shared.SessionStore
	logger     *slog.Logger
	minPass    int
	cache      *expirable.LRU[string, Session]
	group      singleflight.Group
	bcryptCost int
}

// NewService constructs a new Service.
func NewService(repo Repository, store *shared.SessionStore, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	minPass := cfg.MinPasswordLength
	if minPass <= 0 {
		minPass = 8
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	var cache *expirable.LRU[string, Session]
	if cfg.CacheTTL > 0 {
		cache = expirable.NewLRU[string, Session](size, nil, cfg.CacheTTL)
	}
	return &Service{
		repo:       repo,
		store:      store,
		logger:     logger,
		minPass:    minPass,
		cache:      cache,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPasswordLength enforces the configured minimum password length.
func (s *Service) CheckPasswordLength(password string) error {
	if utf8.RuneCountInString(password) < s.minPass {
		return fmt.Errorf("%w: minimum %d characters", ErrWeakPassword, s.minPass)
	}
	return nil
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// SignUp registers a new active cashier account.
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (*User, error) {
	if err := s.CheckPasswordLength(input.Password); err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	now := time.Now().UTC()
	user := User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(input.Email),
		Name:         strings.TrimSpace(input.Name),
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: string(hashed),
		Role:         string(DefaultRole),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignIn authenticates the credentials and opens a new session.
func (s *Service) SignIn(ctx context.Context, input SignInInput, ip, userAgent string) (*Session, error) {
	user, err := s.Authenticate(ctx, input.Email, input.Password)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Create(ctx, user.ID, ip, userAgent)
	if err != nil {
		return nil, fmt.Errorf("auth: create session: %w", err)
	}
	if err := s.repo.CreateSession(ctx, rec.ID, user.ID, rec.ExpiresAt, ip, userAgent); err != nil {
		s.logger.Warn("register session", slog.Any("error", err))
	}
	sess := newSession(rec, user)
	return &sess, nil
}

// SignOut destroys the session identified by token. Unknown tokens are
// ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if s.cache != nil {
		s.cache.Remove(token)
	}
	rec, err := s.store.Get(ctx, token)
	if err != nil && !errors.Is(err, shared.ErrSessionNotFound) && !errors.Is(err, shared.ErrSessionExpired) {
		return err
	}
	if err := s.store.Delete(ctx, token); err != nil {
		return err
	}
	if rec.ID != "" {
		if err := s.repo.DeleteSession(ctx, rec.ID); err != nil {
			s.logger.Warn("remove session", slog.Any("error", err))
		}
	}
	return nil
}

// ResolveSession verifies the session cookie on r and loads its user.
func (s *Service) ResolveSession(r *http.Request) (*Session, error) {
	token, ok := s.store.TokenFromRequest(r)
	if !ok {
		return nil, ErrNoSession
	}
	now := time.Now()
	if s.cache != nil {
		if cached, hit := s.cache.Get(token); hit {
			if cached.ExpiresAt.After(now) {
				return &cached, nil
			}
			s.cache.Remove(token)
		}
	}

	// Concurrent callers share one load, so it must outlive any single request.
	ctx := context.WithoutCancel(r.Context())
	val, err, _ := s.group.Do(token, func() (interface{}, error) {
		return s.loadSession(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	sess := val.(Session)
	if s.cache != nil && !sess.Refreshed {
		s.cache.Add(token, sess)
	}
	return &sess, nil
}

// WriteSessionCookie rewrites the cookie for sess.
func (s *Service) WriteSessionCookie(w http.ResponseWriter, sess *Session) {
	if sess == nil {
		return
	}
	s.store.WriteCookie(w, shared.SessionRecord{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

// ClearSessionCookie expires the session cookie.
func (s *Service) ClearSessionCookie(w http.ResponseWriter) {
	s.store.ClearCookie(w)
}

// TokenFromRequest exposes the raw session token from r.
func (s *Service) TokenFromRequest(r *http.Request) (string, bool) {
	return s.store.TokenFromRequest(r)
}

// InvalidateUser drops cached sessions for userID so role or status
// changes take effect on the next request.
func (s *Service) InvalidateUser(userID string) {
	if s.cache == nil {
		return
	}
	for _, token := range s.cache.Keys() {
		if sess, ok := s.cache.Peek(token); ok && sess.UserID == userID {
			s.cache.Remove(token)
		}
	}
}

// PurgeExpiredSessions removes postgres session rows past expiry. Redis
// entries expire on their own TTL.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, time.Now().UTC())
}

func (s *Service) loadSession(ctx context.Context, token string) (Session, error) {
	rec, err := s.store.Get(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrSessionNotFound):
			return Session{}, ErrNoSession
		case errors.Is(err, shared.ErrSessionExpired):
			return Session{}, ErrSessionExpired
		}
		return Session{}, fmt.Errorf("auth: load session: %w", err)
	}
	user, err := s.repo.FindByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("auth: load user: %w", err)
	}
	if !user.IsActive {
		return Session{}, ErrInactiveUser
	}
	refreshed := false
	if s.store.NeedsRefresh(rec) {
		if next, err := s.store.Refresh(ctx, rec); err != nil {
			s.logger.Warn("refresh session", slog.Any("error", err))
		} else {
			rec = next
			refreshed = true
		}
	}
	sess := newSession(rec, user)
	sess.Refreshed = refreshed
	return sess, nil
}

func newSession(rec shared.SessionRecord, user *User) Session {
	return Session{
		ID:        rec.ID,
		Token:     rec.Token,
		UserID:    user.ID,
		IPAddress: rec.IPAddress,
		UserAgent: rec.UserAgent,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
		User: SessionUser{
			ID:       user.ID,
			Email:    user.Email,
			Name:     user.Name,
			Role:     user.Role,
			IsActive: user.IsActive,
		},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ Resolver = (*Service)(nil)
var _ CookieRefresher = (*Service)(nil)
