package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process and tlctl.
// Values come from env, optionally seeded from a .env file in the working dir.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	Log       LogConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Twilio    TwilioConfig
	Webhook   WebhookConfig
	Lifecycle LifecycleConfig
	Jobs      JobsConfig
	Breaker   BreakerConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type LogConfig struct {
	// File enables a rotated file sink next to stdout. Empty means stdout only.
	File string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	ConnectAttempts uint
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type TwilioConfig struct {
	AuthToken string
	// PublicBaseURL is the externally visible origin the provider signs against,
	// e.g. https://hooks.example.com. Empty derives it from forwarded headers.
	PublicBaseURL string
}

type WebhookConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

type LifecycleConfig struct {
	MonotonicGuard bool
}

type JobsConfig struct {
	TranscriptionEndpoint string
	TranscriptionTimeout  time.Duration
	PollInterval          time.Duration
	BatchSize             int
	MaxAttempts           int
	PoolSize              int
}

type BreakerConfig struct {
	Failures uint32
	Timeout  time.Duration
}

// Load reads .env (when present) and the process environment.
// Variables already set in the environment win over .env entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.Log.File = strings.TrimSpace(os.Getenv("LOG_FILE"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	{
		n, err := optionalInt("DB_CONNECT_ATTEMPTS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		if n > 0 {
			c.DB.ConnectAttempts = uint(n)
		}
	}

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := optionalInt("REDIS_DB")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")

	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.PublicBaseURL = strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL"))

	{
		n, err := optionalInt("WEBHOOK_RATE_LIMIT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Webhook.RateLimit = n
	}
	c.Webhook.RateWindow = mustDuration("WEBHOOK_RATE_WINDOW")

	{
		b, err := optionalBool("LIFECYCLE_MONOTONIC_GUARD")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Lifecycle.MonotonicGuard = b
	}

	c.Jobs.TranscriptionEndpoint = strings.TrimSpace(os.Getenv("TRANSCRIPTION_ENDPOINT"))
	c.Jobs.TranscriptionTimeout = mustDuration("TRANSCRIPTION_TIMEOUT")
	c.Jobs.PollInterval = mustDuration("JOBS_POLL_INTERVAL")
	for key, dst := range map[string]*int{
		"JOBS_BATCH_SIZE":   &c.Jobs.BatchSize,
		"JOBS_MAX_ATTEMPTS": &c.Jobs.MaxAttempts,
		"JOBS_POOL_SIZE":    &c.Jobs.PoolSize,
	} {
		n, err := optionalInt(key)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		*dst = n
	}

	{
		n, err := optionalInt("BREAKER_FAILURES")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		if n > 0 {
			c.Breaker.Failures = uint32(n)
		}
	}
	c.Breaker.Timeout = mustDuration("BREAKER_TIMEOUT")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	if c.DB.ConnectAttempts == 0 {
		c.DB.ConnectAttempts = 5
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		errs = append(errs, fmt.Errorf("REDIS_DB must be between 0 and 15, got %d", c.Redis.DB))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.PublicBaseURL != "" {
		if err := validateBaseURL(c.Twilio.PublicBaseURL); err != nil {
			errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL %w", err))
		}
	} else if c.IsProduction() {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required in production"))
	}

	if c.Webhook.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("WEBHOOK_RATE_LIMIT must be >= 0, got %d", c.Webhook.RateLimit))
	}
	if c.Webhook.RateWindow <= 0 {
		c.Webhook.RateWindow = time.Minute
	}

	if c.Jobs.TranscriptionEndpoint != "" {
		if err := validateBaseURL(c.Jobs.TranscriptionEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("TRANSCRIPTION_ENDPOINT %w", err))
		}
	}
	if c.Jobs.TranscriptionTimeout <= 0 {
		c.Jobs.TranscriptionTimeout = 10 * time.Second
	}
	if c.Jobs.PollInterval <= 0 {
		c.Jobs.PollInterval = 5 * time.Second
	}
	if c.Jobs.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("JOBS_POLL_INTERVAL must be at least 1s, got %s", c.Jobs.PollInterval))
	}
	if c.Jobs.BatchSize <= 0 {
		c.Jobs.BatchSize = 10
	}
	if c.Jobs.MaxAttempts <= 0 {
		c.Jobs.MaxAttempts = 5
	}
	if c.Jobs.PoolSize <= 0 {
		c.Jobs.PoolSize = 4
	}

	if c.Breaker.Failures == 0 {
		c.Breaker.Failures = 5
	}
	if c.Breaker.Timeout <= 0 {
		c.Breaker.Timeout = 30 * time.Second
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// PostgresURL is the URL form of PostgresDSN, required by the migrator.
func (c Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func optionalBool(key string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host, got %q", raw)
	}
	return nil
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
