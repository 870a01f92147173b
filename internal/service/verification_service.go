package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/quillnotes/auth-service/internal/domain"
	"github.com/quillnotes/auth-service/internal/repository"
	"github.com/quillnotes/auth-service/internal/utils"
)

const otpAlgorithm = "SHA256"

// CodeParams configure issued one-time codes.
type CodeParams struct {
	Period  time.Duration
	Digits  int
	Charset string
}

// verificationService implements VerificationService
type verificationService struct {
	verifications repository.VerificationRepository
	params        CodeParams
	now           func() time.Time
}

// NewVerificationService creates a new verification service
func NewVerificationService(verifications repository.VerificationRepository, params CodeParams) VerificationService {
	return &verificationService{
		verifications: verifications,
		params:        params,
		now:           time.Now,
	}
}

// Issue derives a one-time code from a fresh random secret and the current
// time-step, and persists the secret and parameters. Re-issuing for the
// same (type, target) overwrites the previous record: at most one live
// code per pair.
func (s *verificationService) Issue(ctx context.Context, vType, target string) (string, error) {
	secret, err := utils.GenerateOTPSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate verification secret: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.params.Period)

	v := &domain.Verification{
		Type:      vType,
		Target:    target,
		Secret:    secret,
		Algorithm: otpAlgorithm,
		Digits:    s.params.Digits,
		Period:    int64(s.params.Period.Seconds()),
		Charset:   s.params.Charset,
		ExpiresAt: &expiresAt,
		CreatedAt: now,
	}

	if err := s.verifications.Upsert(ctx, v); err != nil {
		return "", fmt.Errorf("failed to persist verification: %w", err)
	}

	counter := now.Unix() / v.Period
	code, err := utils.OTPCode(secret, counter, v.Digits, v.Charset, v.Algorithm)
	if err != nil {
		return "", fmt.Errorf("failed to derive verification code: %w", err)
	}

	return code, nil
}

// Verify checks a submitted code against the stored record. Every failure
// mode (unknown target, expired record, wrong code) collapses into
// domain.ErrInvalidCode so the response shape cannot be used to probe
// which targets exist. Success consumes the record.
func (s *verificationService) Verify(ctx context.Context, vType, target, code string) error {
	v, err := s.verifications.Get(ctx, vType, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrInvalidCode
		}
		return fmt.Errorf("failed to load verification: %w", err)
	}

	now := s.now()
	if v.Expired(now) {
		return domain.ErrInvalidCode
	}

	if !s.codeMatches(v, code, now) {
		return domain.ErrInvalidCode
	}

	if err := s.verifications.Delete(ctx, vType, target); err != nil {
		return fmt.Errorf("failed to consume verification: %w", err)
	}

	return nil
}

// codeMatches regenerates the expected code at the current time-step and
// one adjacent step each way for clock skew, comparing in constant time.
func (s *verificationService) codeMatches(v *domain.Verification, code string, now time.Time) bool {
	if len(code) != v.Digits {
		return false
	}

	base := now.Unix() / v.Period
	for step := int64(-1); step <= 1; step++ {
		counter := base + step
		if counter < 0 {
			continue
		}
		expected, err := utils.OTPCode(v.Secret, counter, v.Digits, v.Charset, v.Algorithm)
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true
		}
	}

	return false
}
