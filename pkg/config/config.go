package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret = "dev_secret"
)

// ErrMissingSecret is returned when production runs without a real signing secret.
var ErrMissingSecret = errors.New("JWT_SECRET must be set in production")

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Cookie   CookieConfig
	Mail     MailConfig
	Jobs     JobsConfig
	Metrics  MetricsConfig
	CORS     CORSConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	Path         string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

// AuthConfig tunes the login, OTP and password reset flows.
type AuthConfig struct {
	OTPTTL            time.Duration
	ResetTTL          time.Duration
	BcryptCost        int
	MinPasswordLength int
	LoginMaxAttempts  int
	LoginLockout      time.Duration
	OTPRequestLimit   int
	OTPRequestWindow  time.Duration
	LogoutRedirectURL string
}

// CookieConfig controls how issued tokens are written to the browser.
type CookieConfig struct {
	Domain string
	Secure bool
}

// MailConfig configures outbound mail through Amazon SES.
type MailConfig struct {
	Region     string
	FromEmail  string
	FromName   string
	AppBaseURL string
}

// JobsConfig sizes the background delivery queue.
type JobsConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		Path:         v.GetString("DB_PATH"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("AUTH_ACCESS_TTL"), 15*time.Minute),
		RefreshExpiration: parseDuration(v.GetString("AUTH_REFRESH_TTL"), 7*24*time.Hour),
	}

	cfg.Auth = AuthConfig{
		OTPTTL:            parseDuration(v.GetString("AUTH_OTP_TTL"), 10*time.Minute),
		ResetTTL:          parseDuration(v.GetString("AUTH_RESET_TTL"), time.Hour),
		BcryptCost:        v.GetInt("AUTH_BCRYPT_COST"),
		MinPasswordLength: v.GetInt("AUTH_MIN_PASSWORD_LENGTH"),
		LoginMaxAttempts:  v.GetInt("AUTH_LOGIN_MAX_ATTEMPTS"),
		LoginLockout:      parseDuration(v.GetString("AUTH_LOGIN_LOCKOUT"), 15*time.Minute),
		OTPRequestLimit:   v.GetInt("AUTH_OTP_REQUEST_LIMIT"),
		OTPRequestWindow:  parseDuration(v.GetString("AUTH_OTP_REQUEST_WINDOW"), 15*time.Minute),
		LogoutRedirectURL: v.GetString("LOGOUT_REDIRECT_URL"),
	}

	cfg.Cookie = CookieConfig{
		Domain: v.GetString("COOKIE_DOMAIN"),
		Secure: cfg.Env == EnvProduction,
	}

	cfg.Mail = MailConfig{
		Region:     v.GetString("MAIL_AWS_REGION"),
		FromEmail:  v.GetString("MAIL_FROM_EMAIL"),
		FromName:   v.GetString("MAIL_FROM_NAME"),
		AppBaseURL: strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		Retries:    v.GetInt("JOBS_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	if cfg.Env == EnvProduction && (cfg.JWT.Secret == "" || cfg.JWT.Secret == devJWTSecret) {
		return nil, ErrMissingSecret
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "academy")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_PATH", "./academy.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_ISSUER", "academy-api")
	v.SetDefault("AUTH_ACCESS_TTL", "15m")
	v.SetDefault("AUTH_REFRESH_TTL", "168h")

	v.SetDefault("AUTH_OTP_TTL", "10m")
	v.SetDefault("AUTH_RESET_TTL", "1h")
	v.SetDefault("AUTH_BCRYPT_COST", 10)
	v.SetDefault("AUTH_MIN_PASSWORD_LENGTH", 6)
	v.SetDefault("AUTH_LOGIN_MAX_ATTEMPTS", 10)
	v.SetDefault("AUTH_LOGIN_LOCKOUT", "15m")
	v.SetDefault("AUTH_OTP_REQUEST_LIMIT", 5)
	v.SetDefault("AUTH_OTP_REQUEST_WINDOW", "15m")
	v.SetDefault("LOGOUT_REDIRECT_URL", "/")

	v.SetDefault("COOKIE_DOMAIN", "")

	v.SetDefault("MAIL_AWS_REGION", "us-east-1")
	v.SetDefault("MAIL_FROM_EMAIL", "")
	v.SetDefault("MAIL_FROM_NAME", "Academy")
	v.SetDefault("APP_BASE_URL", "http://localhost:5173")

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "2s")

	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
