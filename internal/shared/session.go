package shared

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionNotFound indicates the token has no record in the store.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the record exists but is past its expiry.
	ErrSessionExpired = errors.New("session expired")
)

// SessionRecord is the server-side state referenced by a session cookie.
type SessionRecord struct {
	ID        string    `json:"id"`
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at now.
func (r SessionRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// SessionStore keeps session records in Redis, keyed by the cookie token,
// and writes the matching cookie headers. Tokens have the form
// "<random>.<mac>" where mac is an HMAC-SHA256 of the random part under the
// configured secret; tokens with a bad mac are rejected before Redis is read.
type SessionStore struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	updateAge  time.Duration
	secure     bool
	secret     []byte
	now        func() time.Time
}

// SessionOptions configures a SessionStore.
type SessionOptions struct {
	CookieName string
	Secret     string
	TTL        time.Duration
	UpdateAge  time.Duration
	Secure     bool
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, opts SessionOptions) *SessionStore {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	updateAge := opts.UpdateAge
	if updateAge <= 0 || updateAge > ttl {
		updateAge = 24 * time.Hour
	}
	return &SessionStore{
		client:     client,
		cookieName: opts.CookieName,
		ttl:        ttl,
		updateAge:  updateAge,
		secure:     opts.Secure,
		secret:     []byte(opts.Secret),
		now:        time.Now,
	}
}

// Create stores a new session for userID and returns it with a fresh token.
func (s *SessionStore) Create(ctx context.Context, userID, ip, userAgent string) (SessionRecord, error) {
	now := s.now().UTC()
	rec := SessionRecord{
		ID:        uuid.NewString(),
		Token:     s.generateToken(),
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.save(ctx, rec); err != nil {
		return SessionRecord{}, err
	}
	return rec, nil
}

// Get loads the record for token. Expired records are removed and reported
// as ErrSessionExpired.
func (s *SessionStore) Get(ctx context.Context, token string) (SessionRecord, error) {
	if !s.validToken(token) {
		return SessionRecord{}, ErrSessionNotFound
	}
	payload, err := s.client.Get(ctx, s.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionRecord{}, ErrSessionNotFound
		}
		return SessionRecord{}, err
	}
	var rec SessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return SessionRecord{}, err
	}
	rec.Token = token
	if rec.Expired(s.now()) {
		_ = s.client.Del(ctx, s.redisKey(token)).Err()
		return SessionRecord{}, ErrSessionExpired
	}
	return rec, nil
}

// NeedsRefresh reports whether the sliding window should be extended.
func (s *SessionStore) NeedsRefresh(rec SessionRecord) bool {
	return s.now().Sub(rec.UpdatedAt) >= s.updateAge
}

// Refresh extends the expiry of rec by the full TTL.
func (s *SessionStore) Refresh(ctx context.Context, rec SessionRecord) (SessionRecord, error) {
	now := s.now().UTC()
	rec.UpdatedAt = now
	rec.ExpiresAt = now.Add(s.ttl)
	if err := s.save(ctx, rec); err != nil {
		return SessionRecord{}, err
	}
	return rec, nil
}

// Delete removes the record for token.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.redisKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TokenFromRequest returns the session cookie value, if any.
func (s *SessionStore) TokenFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// WriteCookie sets the session cookie for rec.
func (s *SessionStore) WriteCookie(w http.ResponseWriter, rec SessionRecord) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    rec.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  rec.ExpiresAt,
	})
}

// ClearCookie expires the session cookie on the client.
func (s *SessionStore) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TTL exposes the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (s *SessionStore) CookieName() string {
	return s.cookieName
}

// SetClock replaces the time source. Intended for tests.
func (s *SessionStore) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *SessionStore) save(ctx context.Context, rec SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.redisKey(rec.Token), data, ttl).Err()
}

func (s *SessionStore) redisKey(token string) string {
	return "session:" + token
}

func (s *SessionStore) generateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		copy(b, uuid.New().String()+uuid.New().String())
	}
	nonce := base64.RawURLEncoding.EncodeToString(b)
	return nonce + "." + s.sign(nonce)
}

func (s *SessionStore) sign(nonce string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s *SessionStore) validToken(token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" || sig == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(s.sign(nonce)))
}
