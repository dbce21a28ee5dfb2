package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the timeline service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseDriver   string
	DatabaseURL      string
	AutoMigrate      bool
	RedisURL         string
	NATSURL          string
	NATSSubject      string
	JWTSecret        string
	RateLimitMax     int
	RateLimitWindow  time.Duration
	AllowedRoles     []string
	TimelineMappings string
	Timeline         Timeline
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
// Map-shaped timeline settings come from the YAML mappings file because viper
// folds key case, which would break class-name keys such as App\Models\User.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TIMELINE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Activity Timeline")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("nats.subject", "activity.logged")
	v.SetDefault("rate_limit.max", 60)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("auth.roles", "admin,auditor")
	v.SetDefault("mappings_file", "config/timeline.yaml")
	v.SetDefault("datetime_format", DefaultDateTimeFormat)
	v.SetDefault("causer_field_name", "")
	v.SetDefault("limit", DefaultLimit)
	v.SetDefault("locale", DefaultLocale)
	v.SetDefault("timezone", "UTC")
	v.SetDefault("cache_ttl", "0s")

	window, err := time.ParseDuration(v.GetString("rate_limit.window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid timeline cache ttl: %w", err)
	}

	location, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid timeline timezone: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseDriver:   strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:      v.GetString("database.url"),
		AutoMigrate:      v.GetBool("database.auto_migrate"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		NATSSubject:      v.GetString("nats.subject"),
		JWTSecret:        v.GetString("jwt.secret"),
		RateLimitMax:     v.GetInt("rate_limit.max"),
		RateLimitWindow:  window,
		AllowedRoles:     splitList(v.GetString("auth.roles")),
		TimelineMappings: v.GetString("mappings_file"),
		Timeline: Timeline{
			DateTimeFormat:  v.GetString("datetime_format"),
			CauserFieldName: strings.TrimSpace(v.GetString("causer_field_name")),
			Limit:           v.GetInt("limit"),
			Locale:          strings.ToLower(v.GetString("locale")),
			Location:        location,
			CacheTTL:        cacheTTL,
		},
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.TimelineMappings != "" {
		mappings, err := LoadMappings(cfg.TimelineMappings)
		if err != nil {
			return Config{}, err
		}
		cfg.Timeline.Apply(mappings)
	}

	cfg.Timeline = cfg.Timeline.WithDefaults()

	return cfg, nil
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
