package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "CourtChamps"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultTokenTTL        = 30 * time.Minute
	defaultAllowedOrigin   = "https://courtchamps.com"
	defaultConfirmationURL = "https://courtchamps.com/accounts/delete-account"
	defaultMongoDatabase   = "courtchamps"
	defaultMongoCollection = "users"
	defaultFromName        = "CourtChamps"
	defaultReconcileSpec   = "@every 5m"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	tokenTTLSecondsEnvVar  = "DELETION_TOKEN_TTL_SECONDS"
	tokenTTLDurationEnvVar = "DELETION_TOKEN_TTL"
)

// Backend names accepted by the *_STORE variables.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
)

// Confirmation channels.
const (
	ChannelDirect = "direct"
	ChannelEmail  = "email"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	ShutdownPeriod time.Duration

	DatabaseURL            string
	RedisURL               string
	MongoURL               string
	MongoDatabase          string
	MongoProfileCollection string

	DirectoryStore string
	TokenStore     string
	ProfileStore   string

	ConfirmationChannel string
	TokenTTL            time.Duration
	AllowedOrigin       string
	ConfirmationURL     string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SendGridSandbox   bool

	TokenSweepSchedule string
	ReconcileSchedule  string

	// DevSeedEmails are registered in the memory directory at start-up.
	DevSeedEmails []string
}

// Load reads configuration values from the environment and populates a Config instance.
// A .env file in the working directory is applied first without overriding set variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		ShutdownPeriod: defaultShutdownDelay,

		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisURL:               os.Getenv("REDIS_URL"),
		MongoURL:               os.Getenv("MONGO_URL"),
		MongoDatabase:          getEnv("MONGO_DATABASE", defaultMongoDatabase),
		MongoProfileCollection: getEnv("MONGO_PROFILE_COLLECTION", defaultMongoCollection),

		DirectoryStore: strings.ToLower(getEnv("DIRECTORY_STORE", BackendPostgres)),
		TokenStore:     strings.ToLower(getEnv("TOKEN_STORE", BackendRedis)),
		ProfileStore:   strings.ToLower(getEnv("PROFILE_STORE", BackendPostgres)),

		ConfirmationChannel: strings.ToLower(getEnv("CONFIRMATION_CHANNEL", ChannelEmail)),
		TokenTTL:            defaultTokenTTL,
		AllowedOrigin:       getEnv("ALLOWED_ORIGIN", defaultAllowedOrigin),
		ConfirmationURL:     getEnv("CONFIRMATION_URL", defaultConfirmationURL),

		SendGridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
		SendGridFromEmail: os.Getenv("SENDGRID_FROM_EMAIL"),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", defaultFromName),

		TokenSweepSchedule: os.Getenv("TOKEN_SWEEP_SCHEDULE"),
		ReconcileSchedule:  getEnv("RECONCILE_SCHEDULE", defaultReconcileSpec),

		DevSeedEmails: splitList(os.Getenv("DEV_SEED_EMAILS")),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = durationEnv(tokenTTLSecondsEnvVar, tokenTTLDurationEnvVar, cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("SENDGRID_SANDBOX"); v != "" {
		if cfg.SendGridSandbox, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("invalid SENDGRID_SANDBOX: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend selections against the connection settings they need.
func (c Config) Validate() error {
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%s must be positive", tokenTTLDurationEnvVar)
	}

	switch c.ConfirmationChannel {
	case ChannelDirect:
	case ChannelEmail:
		if c.SendGridAPIKey == "" && !c.IsDev() {
			return fmt.Errorf("SENDGRID_API_KEY must be set for CONFIRMATION_CHANNEL=email outside development")
		}
		if c.SendGridAPIKey != "" && c.SendGridFromEmail == "" {
			return fmt.Errorf("SENDGRID_FROM_EMAIL must be set when SENDGRID_API_KEY is set")
		}
	default:
		return fmt.Errorf("unknown CONFIRMATION_CHANNEL %q", c.ConfirmationChannel)
	}

	if err := c.checkBackend("DIRECTORY_STORE", c.DirectoryStore, BackendPostgres, BackendMemory); err != nil {
		return err
	}
	if err := c.checkBackend("TOKEN_STORE", c.TokenStore, BackendRedis, BackendPostgres, BackendMemory); err != nil {
		return err
	}
	if err := c.checkBackend("PROFILE_STORE", c.ProfileStore, BackendPostgres, BackendMongo, BackendMemory); err != nil {
		return err
	}

	if c.UsesPostgres() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.TokenStore == BackendRedis && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set")
	}
	if c.ProfileStore == BackendMongo && c.MongoURL == "" {
		return fmt.Errorf("MONGO_URL must be set")
	}
	return nil
}

func (c Config) checkBackend(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value != a {
			continue
		}
		if value == BackendMemory && !c.IsDev() {
			return fmt.Errorf("%s=memory is only allowed when APP_ENV is development", key)
		}
		return nil
	}
	return fmt.Errorf("unknown %s %q", key, value)
}

// UsesPostgres reports whether any configured backend needs the Postgres pool.
func (c Config) UsesPostgres() bool {
	return c.DirectoryStore == BackendPostgres ||
		c.TokenStore == BackendPostgres ||
		c.ProfileStore == BackendPostgres
}

// IsDev reports whether the app runs in a local/development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
