package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weather-notify/internal/domain"
	"github.com/weather-notify/internal/pkg/id"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SubscriberRepo mirrors dynamo.SubscriberRepo on a MongoDB collection.
type SubscriberRepo struct {
	coll *mongo.Collection
}

func NewSubscriberRepo(coll *mongo.Collection) *SubscriberRepo {
	return &SubscriberRepo{coll: coll}
}

func byEmail(email string) bson.M {
	return bson.M{domain.FieldEmail: email}
}

func (r *SubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) error {
	_, err := r.coll.InsertOne(ctx, s)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("subscriber %s already exists: %w", s.Email, domain.ErrConflict)
	}
	return err
}

func (r *SubscriberRepo) Get(ctx context.Context, email string) (*domain.Subscriber, error) {
	var s domain.Subscriber
	err := r.coll.FindOne(ctx, byEmail(email)).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("subscriber not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubscriberRepo) Update(ctx context.Context, email string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return errors.New("no fields to update")
	}
	set := bson.M{domain.FieldUpdatedAt: time.Now().UTC()}
	for k, v := range updates {
		set[k] = v
	}
	res, err := r.coll.UpdateOne(ctx, byEmail(email), bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("subscriber not found: %w", domain.ErrNotFound)
	}
	return nil
}

// UpsertOTP stores a code hash and expiry, inserting a bare unverified
// document when the email is unknown.
func (r *SubscriberRepo) UpsertOTP(ctx context.Context, email, otpHash string, expiresAt time.Time) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			domain.FieldOTP:          otpHash,
			domain.FieldOTPExpiresAt: expiresAt.UTC(),
			domain.FieldUpdatedAt:    now,
		},
		"$setOnInsert": bson.M{
			domain.FieldSubscriberID:     id.New(),
			domain.FieldVerified:         false,
			domain.FieldWeatherSnapshots: bson.A{},
			domain.FieldCreatedAt:        now,
		},
	}
	_, err := r.coll.UpdateOne(ctx, byEmail(email), update, options.Update().SetUpsert(true))
	return err
}

func (r *SubscriberRepo) AppendSnapshot(ctx context.Context, email string, snap domain.WeatherSnapshot) error {
	res, err := r.coll.UpdateOne(ctx, byEmail(email), bson.M{
		"$push": bson.M{domain.FieldWeatherSnapshots: snap},
		"$set":  bson.M{domain.FieldUpdatedAt: time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("subscriber not found: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *SubscriberRepo) Delete(ctx context.Context, email string) error {
	_, err := r.coll.DeleteOne(ctx, byEmail(email))
	return err
}

func (r *SubscriberRepo) Scan(ctx context.Context) ([]domain.Subscriber, error) {
	cur, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var subs []domain.Subscriber
	if err := cur.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *SubscriberRepo) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}
