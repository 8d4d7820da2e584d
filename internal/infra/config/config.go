package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BrokerMemory = "memory"
	BrokerRedis  = "redis"
	BrokerNATS   = "nats"
)

// Config aggregates application configuration values loaded from environment variables.
// Every backend is optional; an empty address selects the in-memory implementation.
type Config struct {
	Env      string
	HTTPAddr string

	MongoURI string
	MongoDB  string

	ScyllaHosts       []string
	ScyllaKeyspace    string
	ScyllaConsistency string
	ScyllaTimeout     time.Duration

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaGroupID       string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	S3Endpoint       string
	S3PublicEndpoint string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	S3UseSSL         bool

	RedisAddr      string
	NATSURL        string
	RealtimeBroker string

	JWTSecret  string
	SessionTTL time.Duration

	EmailJSServiceID  string
	EmailJSPublicKey  string
	EmailJSPrivateKey string
	EmailJSTemplates  map[string]string
	EmailJSEndpoint   string
	MailTo            string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	AllowedOrigins    []string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:               getEnv("APP_ENV", "dev"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDB:           getEnv("MONGO_DB", "mujthriftz"),
		ScyllaHosts:       splitList(os.Getenv("SCYLLA_HOSTS")),
		ScyllaKeyspace:    getEnv("SCYLLA_KEYSPACE", "mujthriftz_chat"),
		ScyllaConsistency: getEnv("SCYLLA_CONSISTENCY", "quorum"),
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicPrefix:  getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "mujthriftz-notifications"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3PublicEndpoint:  os.Getenv("S3_PUBLIC_ENDPOINT"),
		S3AccessKey:       getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:       getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:          getEnv("S3_BUCKET", "mujthriftz-assets"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		NATSURL:           os.Getenv("NATS_URL"),
		RealtimeBroker:    strings.ToLower(getEnv("REALTIME_BROKER", BrokerMemory)),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		EmailJSServiceID:  os.Getenv("EMAILJS_SERVICE_ID"),
		EmailJSPublicKey:  os.Getenv("EMAILJS_PUBLIC_KEY"),
		EmailJSPrivateKey: os.Getenv("EMAILJS_PRIVATE_KEY"),
		EmailJSEndpoint:   getEnv("EMAILJS_ENDPOINT", "https://api.emailjs.com/api/v1.0/email/send"),
		MailTo:            os.Getenv("MAIL_TO"),
		AllowedOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
		EmailJSTemplates: map[string]string{
			"contact": getEnv("EMAILJS_TEMPLATE_CONTACT", ""),
			"report":  getEnv("EMAILJS_TEMPLATE_REPORT", ""),
			"message": getEnv("EMAILJS_TEMPLATE_MESSAGE", ""),
		},
	}

	var err error
	if cfg.ScyllaTimeout, err = parseDurationEnv("SCYLLA_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindow, err = parseDurationEnv("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitRequests, err = parseIntEnv("RATE_LIMIT_REQUESTS", 300); err != nil {
		return Config{}, err
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}

	for _, raw := range strings.Split(getEnv("RETRY_BACKOFF", "1s,5s,30s"), ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}
	if cfg.S3PublicEndpoint == "" {
		cfg.S3PublicEndpoint = cfg.S3Endpoint
	}

	switch cfg.RealtimeBroker {
	case BrokerMemory:
	case BrokerRedis:
		if cfg.RedisAddr == "" {
			return Config{}, fmt.Errorf("REALTIME_BROKER=redis requires REDIS_ADDR")
		}
	case BrokerNATS:
		if cfg.NATSURL == "" {
			return Config{}, fmt.Errorf("REALTIME_BROKER=nats requires NATS_URL")
		}
	default:
		return Config{}, fmt.Errorf("invalid REALTIME_BROKER %q", cfg.RealtimeBroker)
	}
	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return Config{}, fmt.Errorf("JWT_SECRET is required outside dev")
		}
		cfg.JWTSecret = "dev-only-secret"
	}
	return cfg, nil
}

// IsDev reports whether the process runs in a local developer setup.
func (c Config) IsDev() bool {
	switch c.Env {
	case "dev", "local", "test":
		return true
	}
	return false
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
