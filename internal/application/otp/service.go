// Package otp issues and checks the one-time codes that gate subscription changes.
//
// Issuing a code upserts it onto the subscriber record, creating a bare
// unverified record when the email is new. A code stays valid until it
// expires, so the same code may be presented more than once inside its window
// (verify-otp followed by unsubscribe relies on this).
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/weather-notify/internal/domain"
	"github.com/weather-notify/internal/infrastructure/smtp"
	"github.com/weather-notify/internal/observability"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeMin    = 100000
	codeSpan   = 900000 // codes are 100000..999999 inclusive
	codeDigits = 6

	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = 10 * time.Minute

	mailSubject = "Your OTP"
)

type Service interface {
	Issue(ctx context.Context, email string) error
	Validate(ctx context.Context, email, code string) (bool, error)
	Verify(ctx context.Context, email, code string) (bool, error)
}

type subscriberStore interface {
	Get(ctx context.Context, email string) (*domain.Subscriber, error)
	UpsertOTP(ctx context.Context, email, otpHash string, expiresAt time.Time) error
	Update(ctx context.Context, email string, updates map[string]interface{}) error
}

type service struct {
	store    subscriberStore
	mailer   smtp.Mailer
	clock    clockwork.Clock
	metrics  *observability.Metrics
	ttl      time.Duration
	hashCost int
}

type ServiceDeps struct {
	Store    subscriberStore
	Mailer   smtp.Mailer
	Clock    clockwork.Clock
	Metrics  *observability.Metrics
	TTL      time.Duration
	HashCost int
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:    deps.Store,
		mailer:   deps.Mailer,
		clock:    deps.Clock,
		metrics:  deps.Metrics,
		ttl:      deps.TTL,
		hashCost: deps.HashCost,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	return s
}

func (s *service) Issue(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("email is required: %w", domain.ErrBadRequest)
	}
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}
	expiresAt := s.clock.Now().UTC().Add(s.ttl)
	if err := s.store.UpsertOTP(ctx, email, string(hash), expiresAt); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	if err := s.mailer.SendEmail(email, mailSubject, "Your OTP is: "+code); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	s.metrics.OTPIssued.Inc()
	slog.Info("otp issued", "email", email, "expires_at", expiresAt)
	return nil
}

// Validate reports whether code is the live code for email. A missing record,
// a missing or passed expiry, and a wrong code are all plain false results.
func (s *service) Validate(ctx context.Context, email, code string) (bool, error) {
	ok, err := s.check(ctx, email, code)
	if err != nil {
		return false, err
	}
	if ok {
		s.metrics.OTPValidations.WithLabelValues("valid").Inc()
	} else {
		s.metrics.OTPValidations.WithLabelValues("invalid").Inc()
	}
	return ok, nil
}

// Verify validates code and marks the subscriber verified on success.
func (s *service) Verify(ctx context.Context, email, code string) (bool, error) {
	ok, err := s.Validate(ctx, email, code)
	if err != nil || !ok {
		return false, err
	}
	if err := s.store.Update(ctx, email, map[string]interface{}{domain.FieldVerified: true}); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted between the check and the update.
			return false, nil
		}
		return false, fmt.Errorf("mark verified: %w", err)
	}
	return true, nil
}

func (s *service) check(ctx context.Context, email, code string) (bool, error) {
	if email == "" || len(code) != codeDigits {
		return false, nil
	}
	sub, err := s.store.Get(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load subscriber: %w", err)
	}
	if sub.OTPHash == "" || sub.OTPExpiresAt == nil {
		return false, nil
	}
	if !s.clock.Now().Before(*sub.OTPExpiresAt) {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(sub.OTPHash), []byte(code)) == nil, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}
