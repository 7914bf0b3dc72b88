package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestDefaultsMatchAuthWindows(t *testing.T) {
	cfg, err := fromViper(newTestViper())
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshExpiration)
	assert.Equal(t, 10*time.Minute, cfg.Auth.OTPTTL)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTTL)
	assert.Equal(t, 6, cfg.Auth.MinPasswordLength)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.False(t, cfg.Cookie.Secure)
}

func TestProductionRequiresSecret(t *testing.T) {
	v := newTestViper()
	v.Set("ENV", EnvProduction)

	_, err := fromViper(v)
	assert.ErrorIs(t, err, ErrMissingSecret)

	v.Set("JWT_SECRET", "a-real-secret")
	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.True(t, cfg.Cookie.Secure)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	v := newTestViper()
	v.Set("AUTH_OTP_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Auth.OTPTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
