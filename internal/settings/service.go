package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/shared"
)

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_.]{0,99}$`)

// Service handles settings business logic.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// List returns settings, optionally restricted to one category.
func (s *Service) List(ctx context.Context, category string) ([]Setting, error) {
	return s.repo.List(ctx, strings.ToLower(strings.TrimSpace(category)), false)
}

// Public returns the settings any signed-in client may read.
func (s *Service) Public(ctx context.Context) ([]Setting, error) {
	return s.repo.List(ctx, "", true)
}

func (s *Service) Get(ctx context.Context, key string) (Setting, error) {
	return s.repo.Get(ctx, key)
}

// Put creates or replaces key and stamps the acting user.
func (s *Service) Put(ctx context.Context, actor shared.Principal, key string, in PutInput) (Setting, error) {
	key = strings.TrimSpace(key)
	if !keyPattern.MatchString(key) {
		return Setting{}, fmt.Errorf("%w: key must match %s", httpx.ErrValidation, keyPattern.String())
	}
	if len(bytes.TrimSpace(in.Value)) == 0 || !json.Valid(in.Value) {
		return Setting{}, ErrInvalidValue
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, in.Value); err != nil {
		return Setting{}, ErrInvalidValue
	}

	saved, err := s.repo.Upsert(ctx, Setting{
		Key:         key,
		Value:       compact.Bytes(),
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
		IsPublic:    in.IsPublic,
		UpdatedBy:   actor.UserID,
		UpdatedAt:   s.now().UTC(),
	})
	if err != nil {
		return Setting{}, err
	}
	s.record(ctx, actor, "setting.update", key, map[string]any{"category": saved.Category})
	return saved, nil
}

// Delete removes key.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	s.record(ctx, actor, "setting.delete", key, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action, key string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditEntry{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "setting",
		EntityID: key,
		Meta:     meta,
		At:       s.now().UTC(),
	}); err != nil {
		s.logger.Warn("audit settings change", slog.String("key", key), slog.Any("error", err))
	}
}
