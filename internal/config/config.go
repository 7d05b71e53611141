package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Presence store backends.
const (
	PresenceBackendDatabase = "database"
	PresenceBackendRedis    = "redis"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	DatabaseURL           string
	RedisURL              string
	NATSURL               string
	RealtimeChannel       string
	JWTSecret             string
	AllowOrigins          string
	AccessLogging         bool
	SweepInterval         time.Duration
	PresenceBackend       string
	NotificationWorkers   int
	NotificationQueueSize int
	NotificationTimeout   time.Duration
	SSEKeepAlive          time.Duration
	MessagesPerMinute     int
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
	v.SetEnvPrefix("DEBATE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Debate API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("realtime.channel", "debate")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("http.access_log", true)
	v.SetDefault("sweep.interval", "5s")
	v.SetDefault("presence.backend", PresenceBackendDatabase)
	v.SetDefault("notifications.workers", 4)
	v.SetDefault("notifications.queue_size", 256)
	v.SetDefault("notifications.timeout", "5s")
	v.SetDefault("sse.keepalive", "30s")
	v.SetDefault("ratelimit.messages_per_minute", 30)

	sweepInterval, err := parseDuration(v, "sweep.interval")
	if err != nil {
		return Config{}, err
	}
	notificationTimeout, err := parseDuration(v, "notifications.timeout")
	if err != nil {
		return Config{}, err
	}
	keepAlive, err := parseDuration(v, "sse.keepalive")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		RealtimeChannel:       v.GetString("realtime.channel"),
		JWTSecret:             v.GetString("jwt.secret"),
		AllowOrigins:          v.GetString("cors.origins"),
		AccessLogging:         v.GetBool("http.access_log"),
		SweepInterval:         sweepInterval,
		PresenceBackend:       strings.ToLower(strings.TrimSpace(v.GetString("presence.backend"))),
		NotificationWorkers:   v.GetInt("notifications.workers"),
		NotificationQueueSize: v.GetInt("notifications.queue_size"),
		NotificationTimeout:   notificationTimeout,
		SSEKeepAlive:          keepAlive,
		MessagesPerMinute:     v.GetInt("ratelimit.messages_per_minute"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.PresenceBackend {
	case PresenceBackendDatabase:
	case PresenceBackendRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("presence backend %q requires redis url", cfg.PresenceBackend)
		}
	default:
		return Config{}, fmt.Errorf("unknown presence backend %q", cfg.PresenceBackend)
	}

	if cfg.NotificationWorkers <= 0 {
		cfg.NotificationWorkers = 4
	}
	if cfg.NotificationQueueSize <= 0 {
		cfg.NotificationQueueSize = 256
	}
	if cfg.MessagesPerMinute <= 0 {
		cfg.MessagesPerMinute = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return parsed, nil
}
