package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDynamo = "dynamo"
	StoreMongo  = "mongo"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort         string
	AppEnv          string
	APIBasePath     string
	AllowedOrigins  []string // CORS allowed origins
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	StoreDriver     string
	AWSRegion       string
	AWSEndpointURL  string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID  string
	AWSSecretKey    string
	DynamoTables    DynamoTables
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	WeatherTimeout     time.Duration

	OTPTTL      time.Duration
	OTPHashCost int

	SweepCron            string
	SweepMinInterval     time.Duration // 0 disables the last-notified check
	SweepRecordSnapshots bool

	ReportBucket  string // empty disables the S3 sweep archive
	SNSRegion     string
	SweepTopicARN string // empty disables summary publishing
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Subscribers string
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		APIBasePath:    getEnv("API_BASE_PATH", "/api/users"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),

		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreDynamo)),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Subscribers: getEnv("DYNAMO_TABLE_SUBSCRIBERS", "subscribers"),
		},
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDatabase:   getEnv("MONGO_DATABASE", "weather"),
		MongoCollection: getEnv("MONGO_COLLECTION", "users"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		OpenWeatherAPIKey:  getEnv("OPENWEATHER_API_KEY", ""),
		OpenWeatherBaseURL: getEnv("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5/weather"),

		OTPHashCost: getEnvInt("OTP_HASH_COST", bcrypt.DefaultCost),

		SweepCron:            getEnv("SWEEP_CRON", "0 * * * *"),
		SweepRecordSnapshots: getEnvBool("SWEEP_RECORD_SNAPSHOTS", false),

		ReportBucket:  getEnv("REPORT_BUCKET", ""),
		SNSRegion:     getEnv("SNS_REGION", "us-east-1"),
		SweepTopicARN: getEnv("SWEEP_TOPIC_ARN", ""),
	}

	var err error
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.WeatherTimeout, err = getEnvDuration("WEATHER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTPTTL, err = getEnvDuration("OTP_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepMinInterval, err = getEnvDuration("SWEEP_MIN_INTERVAL", 0); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDynamo:
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required when STORE_DRIVER is mongo")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.OTPTTL <= 0 {
		return errors.New("OTP_TTL must be positive")
	}
	if c.OTPHashCost < bcrypt.MinCost || c.OTPHashCost > bcrypt.MaxCost {
		return fmt.Errorf("OTP_HASH_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if strings.TrimSpace(c.SweepCron) == "" {
		return errors.New("SWEEP_CRON must not be empty")
	}
	if !strings.HasPrefix(c.APIBasePath, "/") {
		return errors.New("API_BASE_PATH must start with /")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}
