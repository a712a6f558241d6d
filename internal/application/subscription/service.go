package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/weather-notify/internal/domain"
	"github.com/weather-notify/internal/pkg/id"
)

type Service interface {
	Register(ctx context.Context, email, location string) error
	UpdateLocation(ctx context.Context, email, location string) (*domain.Subscriber, error)
	Unsubscribe(ctx context.Context, email, code string) error
	GetLocation(ctx context.Context, email string) (*domain.Location, error)
	GetWeatherSnapshot(ctx context.Context, email, date string) (*domain.WeatherSnapshot, error)
}

type subscriberStore interface {
	Get(ctx context.Context, email string) (*domain.Subscriber, error)
	Create(ctx context.Context, s *domain.Subscriber) error
	Update(ctx context.Context, email string, updates map[string]interface{}) error
	Delete(ctx context.Context, email string) error
}

type otpValidator interface {
	Validate(ctx context.Context, email, code string) (bool, error)
}

type service struct {
	store subscriberStore
	otp   otpValidator
	clock clockwork.Clock
}

type ServiceDeps struct {
	Store subscriberStore
	OTP   otpValidator
	Clock clockwork.Clock
}

func NewService(deps ServiceDeps) Service {
	s := &service{store: deps.Store, otp: deps.OTP, clock: deps.Clock}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	return s
}

// Register creates an unverified subscriber or overwrites the location of an
// existing one. It never touches the verified flag.
func (s *service) Register(ctx context.Context, email, location string) error {
	if email == "" || location == "" {
		return fmt.Errorf("email and location are required: %w", domain.ErrBadRequest)
	}
	_, err := s.store.Get(ctx, email)
	switch {
	case err == nil:
		return s.setLocation(ctx, email, location)
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("load subscriber: %w", err)
	}

	now := s.clock.Now().UTC()
	sub := &domain.Subscriber{
		Email:            email,
		SubscriberID:     id.NewAt(now),
		Location:         location,
		WeatherSnapshots: []domain.WeatherSnapshot{},
		Verified:         false,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = s.store.Create(ctx, sub)
	if errors.Is(err, domain.ErrConflict) {
		// Created concurrently (register or OTP issue); fall back to overwrite.
		return s.setLocation(ctx, email, location)
	}
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	return nil
}

func (s *service) UpdateLocation(ctx context.Context, email, location string) (*domain.Subscriber, error) {
	if location == "" {
		return nil, fmt.Errorf("location is required: %w", domain.ErrBadRequest)
	}
	if err := s.setLocation(ctx, email, location); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, email)
}

// Unsubscribe deletes the subscriber once code validates. Nothing is changed
// when it does not.
func (s *service) Unsubscribe(ctx context.Context, email, code string) error {
	ok, err := s.otp.Validate(ctx, email, code)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidOTP
	}
	if err := s.store.Delete(ctx, email); err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	return nil
}

func (s *service) GetLocation(ctx context.Context, email string) (*domain.Location, error) {
	sub, err := s.store.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	return &domain.Location{Email: sub.Email, Location: sub.Location}, nil
}

// GetWeatherSnapshot returns nil without error when no snapshot matches date.
func (s *service) GetWeatherSnapshot(ctx context.Context, email, date string) (*domain.WeatherSnapshot, error) {
	sub, err := s.store.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	return sub.SnapshotFor(date), nil
}

func (s *service) setLocation(ctx context.Context, email, location string) error {
	err := s.store.Update(ctx, email, map[string]interface{}{domain.FieldLocation: location})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("update location: %w", err)
	}
	return err
}
