package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Env       string
	Port      string
	LogLevel  string
	LogFormat string

	DatabaseURL        string
	PersistenceTimeout time.Duration

	RedisURL         string
	WebhookDedupeTTL time.Duration
	WebhookSecret    string
	InternalAPIToken string

	ProviderBaseURL     string
	ProviderAPIKey      string
	ProviderTimeout     time.Duration
	ProviderCallbackURL string

	MaxInterviewFailures int
	InterviewStartTTL    time.Duration
	InterviewWeight      float64
	ResumeWeight         float64

	QueueURL            string
	AWSRegion           string
	WorkerConcurrency   int
	ExpirySweepInterval time.Duration
}

var defaults = map[string]any{
	"ENV":                    "dev",
	"PORT":                   "8080",
	"LOG_LEVEL":              "info",
	"LOG_FORMAT":             "json",
	"PERSISTENCE_TIMEOUT":    "5s",
	"WEBHOOK_DEDUPE_TTL":     "72h",
	"PROVIDER_TIMEOUT":       "10s",
	"MAX_INTERVIEW_FAILURES": 3,
	"INTERVIEW_START_TTL":    "168h",
	"SCORE_INTERVIEW_WEIGHT": 0.7,
	"SCORE_RESUME_WEIGHT":    0.3,
	"AWS_REGION":             "us-east-1",
	"WORKER_CONCURRENCY":     4,
	"EXPIRY_SWEEP_INTERVAL":  "15m",
}

// Load reads configuration from .env files and the environment.
func Load() (Config, error) {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:                  NormalizeEnv(v.GetString("ENV")),
		Port:                 v.GetString("PORT"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogFormat:            v.GetString("LOG_FORMAT"),
		DatabaseURL:          strings.TrimSpace(v.GetString("DATABASE_URL")),
		PersistenceTimeout:   v.GetDuration("PERSISTENCE_TIMEOUT"),
		RedisURL:             strings.TrimSpace(v.GetString("REDIS_URL")),
		WebhookDedupeTTL:     v.GetDuration("WEBHOOK_DEDUPE_TTL"),
		WebhookSecret:        v.GetString("WEBHOOK_SECRET"),
		InternalAPIToken:     v.GetString("INTERNAL_API_TOKEN"),
		ProviderBaseURL:      strings.TrimRight(strings.TrimSpace(v.GetString("PROVIDER_BASE_URL")), "/"),
		ProviderAPIKey:       v.GetString("PROVIDER_API_KEY"),
		ProviderTimeout:      v.GetDuration("PROVIDER_TIMEOUT"),
		ProviderCallbackURL:  v.GetString("PROVIDER_CALLBACK_URL"),
		MaxInterviewFailures: v.GetInt("MAX_INTERVIEW_FAILURES"),
		InterviewStartTTL:    v.GetDuration("INTERVIEW_START_TTL"),
		InterviewWeight:      v.GetFloat64("SCORE_INTERVIEW_WEIGHT"),
		ResumeWeight:         v.GetFloat64("SCORE_RESUME_WEIGHT"),
		QueueURL:             strings.TrimSpace(v.GetString("QUEUE_URL")),
		AWSRegion:            v.GetString("AWS_REGION"),
		WorkerConcurrency:    v.GetInt("WORKER_CONCURRENCY"),
		ExpirySweepInterval:  v.GetDuration("EXPIRY_SWEEP_INTERVAL"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the services cannot run with.
func (c Config) Validate() error {
	if c.DatabaseURL == "" && !IsDevLike(c.Env) {
		return fmt.Errorf("DATABASE_URL is required in %s", c.Env)
	}
	if c.MaxInterviewFailures < 1 {
		return fmt.Errorf("MAX_INTERVIEW_FAILURES must be at least 1")
	}
	if c.InterviewWeight < 0 || c.ResumeWeight < 0 || c.InterviewWeight+c.ResumeWeight <= 0 {
		return fmt.Errorf("score weights must be non-negative with a positive sum")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.PersistenceTimeout <= 0 {
		return fmt.Errorf("PERSISTENCE_TIMEOUT must be positive")
	}
	return nil
}

// NormalizeEnv folds environment aliases to dev, local, staging or production.
func NormalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

// IsDevLike reports whether env allows in-memory fallbacks.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
