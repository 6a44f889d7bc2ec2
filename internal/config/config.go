package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	CORSAllowOrigins  string
	DatabaseURL       string
	DatabasePool      PoolConfig
	RedisURL          string
	NATSURL           string
	JWTSecret         string
	JWTRefreshSecret  string
	ReportCacheTTL    time.Duration
	JobsSubjectPrefix string
	AIProvider        string
	AIModel           string
	OpenAIAPIKey      string
	AIAdvisory        bool
	FuzzyEditDistance int
	FlagRateLimit     int
	FlagRateWindow    time.Duration
}

// PoolConfig bounds the postgres connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Assessment API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("report.cache_ttl", "10m")
	v.SetDefault("jobs.subject_prefix", "gema.jobs")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("grading.ai_advisory", false)
	v.SetDefault("grading.fuzzy_edit_distance", 1)
	v.SetDefault("flags.rate_limit", 10)
	v.SetDefault("flags.rate_window", "1m")

	ttl, err := parseDuration(v, "report.cache_ttl", 10*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid report cache ttl: %w", err)
	}

	window, err := parseDuration(v, "flags.rate_window", time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid flag rate window: %w", err)
	}

	lifetime, err := parseDuration(v, "database.conn_max_lifetime", 30*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid database connection lifetime: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		CORSAllowOrigins:  v.GetString("cors.allow_origins"),
		DatabaseURL:       v.GetString("database.url"),
		DatabasePool: PoolConfig{
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: lifetime,
		},
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		JWTRefreshSecret:  v.GetString("jwt.refresh_secret"),
		ReportCacheTTL:    ttl,
		JobsSubjectPrefix: strings.Trim(v.GetString("jobs.subject_prefix"), "."),
		AIProvider:        strings.ToLower(v.GetString("ai.provider")),
		AIModel:           v.GetString("ai.model"),
		OpenAIAPIKey:      v.GetString("openai_api_key"),
		AIAdvisory:        v.GetBool("grading.ai_advisory"),
		FuzzyEditDistance: v.GetInt("grading.fuzzy_edit_distance"),
		FlagRateLimit:     v.GetInt("flags.rate_limit"),
		FlagRateWindow:    window,
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.JobsSubjectPrefix == "" {
		cfg.JobsSubjectPrefix = "gema.jobs"
	}

	if cfg.FuzzyEditDistance < 0 {
		cfg.FuzzyEditDistance = 0
	}

	if cfg.FlagRateLimit <= 0 {
		cfg.FlagRateLimit = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
