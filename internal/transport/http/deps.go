package http

import (
	"context"
	"time"

	"github.com/weather-notify/internal/domain"
	"github.com/weather-notify/internal/infrastructure/dynamo"
	"github.com/weather-notify/internal/infrastructure/mongo"
)

// SubscriberStore is the full record-store contract. Both backends implement it;
// services depend on narrower subsets.
type SubscriberStore interface {
	Create(ctx context.Context, s *domain.Subscriber) error
	Get(ctx context.Context, email string) (*domain.Subscriber, error)
	Update(ctx context.Context, email string, updates map[string]interface{}) error
	UpsertOTP(ctx context.Context, email, otpHash string, expiresAt time.Time) error
	AppendSnapshot(ctx context.Context, email string, snap domain.WeatherSnapshot) error
	Delete(ctx context.Context, email string) error
	Scan(ctx context.Context) ([]domain.Subscriber, error)
	Ping(ctx context.Context) error
}

var (
	_ SubscriberStore = (*dynamo.SubscriberRepo)(nil)
	_ SubscriberStore = (*mongo.SubscriberRepo)(nil)
)
