package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, "/api/users", cfg.APIBasePath)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, StoreDynamo, cfg.StoreDriver)
	assert.Equal(t, "subscribers", cfg.DynamoTables.Subscribers)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, bcrypt.DefaultCost, cfg.OTPHashCost)
	assert.Equal(t, "0 * * * *", cfg.SweepCron)
	assert.Zero(t, cfg.SweepMinInterval)
	assert.False(t, cfg.SweepRecordSnapshots)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.WeatherTimeout)
	assert.Empty(t, cfg.ReportBucket)
	assert.Empty(t, cfg.SweepTopicARN)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("STORE_DRIVER", "MONGO")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("OTP_TTL", "5m")
	t.Setenv("OTP_HASH_COST", "4")
	t.Setenv("SWEEP_CRON", "*/15 * * * *")
	t.Setenv("SWEEP_MIN_INTERVAL", "50m")
	t.Setenv("SWEEP_RECORD_SNAPSHOTS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 4, cfg.OTPHashCost)
	assert.Equal(t, "*/15 * * * *", cfg.SweepCron)
	assert.Equal(t, 50*time.Minute, cfg.SweepMinInterval)
	assert.True(t, cfg.SweepRecordSnapshots)
}

func TestLoad_MongoWithoutURI(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("OTP_TTL", "ten minutes")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTP_TTL")
}

func TestLoad_NegativeDuration(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_HashCostOutOfRange(t *testing.T) {
	t.Setenv("OTP_HASH_COST", "64")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTP_HASH_COST")
}

func TestLoad_BasePathMustBeAbsolute(t *testing.T) {
	t.Setenv("API_BASE_PATH", "api/users")
	_, err := Load()
	require.Error(t, err)
}
