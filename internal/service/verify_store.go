package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/pkg/database"
)

// OnboardingStash is the in-flight profile of a brand-new provider
// identity, held server-side between the callback and the onboarding form.
type OnboardingStash struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	ImageURL     string `json:"image_url"`
	ProviderName string `json:"provider_name"`
	ProviderID   string `json:"provider_id"`
	RedirectTo   string `json:"redirect_to,omitempty"`
}

// EmailChangeStash carries a pending new email address between the
// change-email request and the code confirmation.
type EmailChangeStash struct {
	UserID   string `json:"user_id"`
	NewEmail string `json:"new_email"`
}

// FlowStash holds short-lived, one-shot blobs that carry state between
// steps of a multi-request flow. Every Take consumes the entry; replays
// read nothing.
type FlowStash interface {
	PutOnboarding(ctx context.Context, stash *OnboardingStash) (string, error)
	TakeOnboarding(ctx context.Context, token string) (*OnboardingStash, error)
	PutResetUser(ctx context.Context, username string) (string, error)
	TakeResetUser(ctx context.Context, token string) (string, error)
	PutEmailChange(ctx context.Context, stash *EmailChangeStash) (string, error)
	TakeEmailChange(ctx context.Context, token string) (*EmailChangeStash, error)
}

// VerifyStore implements FlowStash on Redis.
type VerifyStore struct {
	redis *database.Redis
	ttl   time.Duration
}

var _ FlowStash = (*VerifyStore)(nil)

// NewVerifyStore creates a new verify store
func NewVerifyStore(redis *database.Redis, ttl time.Duration) *VerifyStore {
	return &VerifyStore{redis: redis, ttl: ttl}
}

// PutOnboarding stashes an onboarding profile and returns its token
func (s *VerifyStore) PutOnboarding(ctx context.Context, stash *OnboardingStash) (string, error) {
	return s.put(ctx, "onboarding", stash)
}

// TakeOnboarding consumes an onboarding stash by token
func (s *VerifyStore) TakeOnboarding(ctx context.Context, token string) (*OnboardingStash, error) {
	var stash OnboardingStash
	if err := s.take(ctx, "onboarding", token, &stash); err != nil {
		return nil, err
	}
	return &stash, nil
}

// PutResetUser stashes the username addressed by a verified password reset
func (s *VerifyStore) PutResetUser(ctx context.Context, username string) (string, error) {
	return s.put(ctx, "reset", username)
}

// TakeResetUser consumes a reset-password stash by token
func (s *VerifyStore) TakeResetUser(ctx context.Context, token string) (string, error) {
	var username string
	if err := s.take(ctx, "reset", token, &username); err != nil {
		return "", err
	}
	return username, nil
}

// PutEmailChange stashes a pending email change
func (s *VerifyStore) PutEmailChange(ctx context.Context, stash *EmailChangeStash) (string, error) {
	return s.put(ctx, "email-change", stash)
}

// TakeEmailChange consumes a pending email change by token
func (s *VerifyStore) TakeEmailChange(ctx context.Context, token string) (*EmailChangeStash, error) {
	var stash EmailChangeStash
	if err := s.take(ctx, "email-change", token, &stash); err != nil {
		return nil, err
	}
	return &stash, nil
}

func (s *VerifyStore) put(ctx context.Context, kind string, value any) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate stash token: %w", err)
	}
	token := hex.EncodeToString(raw)

	payload, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode stash: %w", err)
	}

	key := fmt.Sprintf("verify:%s:%s", kind, token)
	if err := s.redis.Client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store stash: %w", err)
	}

	return token, nil
}

func (s *VerifyStore) take(ctx context.Context, kind, token string, dst any) error {
	key := fmt.Sprintf("verify:%s:%s", kind, token)

	payload, err := s.redis.Client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("stash missing or already consumed: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("failed to take stash: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return fmt.Errorf("failed to decode stash: %w", err)
	}

	return nil
}
