package domain

import "time"

// Attribute names shared by every store backend. Partial updates are
// expressed as map[field]value so the names must match the struct tags below.
const (
	FieldEmail            = "email"
	FieldSubscriberID     = "subscriber_id"
	FieldLocation         = "location"
	FieldWeatherSnapshots = "weather_data"
	FieldOTP              = "otp"
	FieldOTPExpiresAt     = "otp_expires_at"
	FieldVerified         = "verified"
	FieldLastNotifiedAt   = "last_notified_at"
	FieldCreatedAt        = "created_at"
	FieldUpdatedAt        = "updated_at"
)

// WeatherSnapshot is a cached weather line for one calendar date.
type WeatherSnapshot struct {
	Date    string `json:"date" dynamodbav:"date" bson:"date"`
	Weather string `json:"weather" dynamodbav:"weather" bson:"weather"`
}

// Subscriber is the single persisted record per email address.
// OTPHash and OTPExpiresAt are written together; an absent or past expiry
// makes the code unusable.
type Subscriber struct {
	Email            string            `json:"email" dynamodbav:"email" bson:"email"`
	SubscriberID     string            `json:"id" dynamodbav:"subscriber_id" bson:"subscriber_id"`
	Location         string            `json:"location" dynamodbav:"location" bson:"location"`
	WeatherSnapshots []WeatherSnapshot `json:"weather_data" dynamodbav:"weather_data" bson:"weather_data"`
	OTPHash          string            `json:"-" dynamodbav:"otp,omitempty" bson:"otp,omitempty"`
	OTPExpiresAt     *time.Time        `json:"-" dynamodbav:"otp_expires_at,omitempty" bson:"otp_expires_at,omitempty"`
	Verified         bool              `json:"verified" dynamodbav:"verified" bson:"verified"`
	LastNotifiedAt   *time.Time        `json:"last_notified_at,omitempty" dynamodbav:"last_notified_at,omitempty" bson:"last_notified_at,omitempty"`
	CreatedAt        time.Time         `json:"created" dynamodbav:"created_at" bson:"created_at"`
	UpdatedAt        time.Time         `json:"updated" dynamodbav:"updated_at" bson:"updated_at"`
}

// SnapshotFor returns the snapshot recorded for date, or nil.
func (s *Subscriber) SnapshotFor(date string) *WeatherSnapshot {
	for i := range s.WeatherSnapshots {
		if s.WeatherSnapshots[i].Date == date {
			return &s.WeatherSnapshots[i]
		}
	}
	return nil
}

// Location is the public projection returned by the location lookup.
type Location struct {
	Email    string `json:"email"`
	Location string `json:"location"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Location string `json:"location" validate:"required"`
}

type UpdateLocationRequest struct {
	Location string `json:"location" validate:"required"`
}

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}
