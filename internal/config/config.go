// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Development-only signing secrets used when APP_ENV is not production and no secret is configured.
const (
	devAccessSecret  = "dev-access-secret"
	devRefreshSecret = "dev-refresh-secret"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Port is the HTTP listen port (e.g. 4001).
	Port string `mapstructure:"PORT"`
	// GRPCHealthAddr is the address of the gRPC health server (e.g. :9090). Empty disables it.
	GRPCHealthAddr string `mapstructure:"GRPC_HEALTH_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the slog level: debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// JWTAccessSecret is the HMAC secret for access tokens. Must differ from JWTRefreshSecret.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret is the HMAC secret for refresh tokens.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTIssuer is the iss claim set on and required of every token.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token and session lifetime (e.g. "720h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`

	// OTPTTLRaw is the OTP challenge lifetime (e.g. "5m").
	OTPTTLRaw string `mapstructure:"OTP_TTL"`
	// OTPHashCost is the bcrypt cost used to hash stored OTP codes (4–31).
	OTPHashCost int `mapstructure:"OTP_HASH_COST"`
	// OTPReturnToClient enables dev OTP mode: codes are kept for GET /dev/otp. Must not be true in production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`

	// StoreBackend selects the keyed store for OTP challenges and sessions: "memory" or "redis".
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// RedisAddr is host:port of Redis; required when StoreBackend is redis.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// RedisKeyPrefix namespaces every key written by this service.
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`
	// StoreExpiryGrace is how long an expired record stays readable before eviction (e.g. "1m").
	StoreExpiryGrace string `mapstructure:"STORE_EXPIRY_GRACE"`
	// SweepIntervalRaw is the period of the expiry sweep (e.g. "1m").
	SweepIntervalRaw string `mapstructure:"SWEEP_INTERVAL"`

	// DatabaseURL is the Postgres DSN. When set, users are persisted in Postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// SMSProvider selects OTP delivery: "log", "smslocal" or "rabbitmq".
	SMSProvider string `mapstructure:"SMS_PROVIDER"`
	// SMSLocalAPIKey is the API key for SMS Local; required when SMSProvider is smslocal.
	SMSLocalAPIKey string `mapstructure:"SMS_LOCAL_API_KEY"`
	// SMSLocalSender is the optional sender ID for SMS Local.
	SMSLocalSender string `mapstructure:"SMS_LOCAL_SENDER"`
	// SMSLocalBaseURL is the SMS Local API base URL.
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`
	// RabbitMQURL is the AMQP URL; required when SMSProvider is rabbitmq.
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`
	// SMSQueue is the queue OTP jobs are published to.
	SMSQueue string `mapstructure:"SMS_QUEUE"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint. Empty installs no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of Kafka brokers for auth events. Empty disables Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuthEventsTopic is the Kafka topic auth events are written to.
	AuthEventsTopic string `mapstructure:"AUTH_EVENTS_KAFKA_TOPIC"`
	// Worker-only: consumer group ID for the auth event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// Worker-only: Loki URL the auth event worker pushes to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("PORT", "4001")
	v.SetDefault("GRPC_HEALTH_ADDR", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ISSUER", "otp-auth")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "720h") // 30d
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("OTP_HASH_COST", 10)
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("STORE_BACKEND", "memory")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "otpauth:")
	v.SetDefault("STORE_EXPIRY_GRACE", "1m")
	v.SetDefault("SWEEP_INTERVAL", "1m")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SMS_PROVIDER", "log")
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_SENDER", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://www.smslocal.com/dev/bulkV2")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("SMS_QUEUE", "sms_jobs")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "otp-auth")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUTH_EVENTS_KAFKA_TOPIC", "otp-auth-events")
	v.SetDefault("KAFKA_GROUP_ID", "otp-auth-event-worker")
	v.SetDefault("LOKI_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Port) == "" {
		return nil, errors.New("config: PORT must be set")
	}

	production := cfg.IsProduction()
	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		if production {
			return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set when APP_ENV=production")
		}
		if cfg.JWTAccessSecret == "" {
			cfg.JWTAccessSecret = devAccessSecret
		}
		if cfg.JWTRefreshSecret == "" {
			cfg.JWTRefreshSecret = devRefreshSecret
		}
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if cfg.OTPReturnToClient && production {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.OTPHashCost == 0 {
		cfg.OTPHashCost = 10
	}
	if cfg.OTPHashCost < 4 || cfg.OTPHashCost > 31 {
		return nil, errors.New("config: OTP_HASH_COST must be between 4 and 31")
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, errors.New("config: REDIS_ADDR must be set when STORE_BACKEND=redis")
		}
	default:
		return nil, errors.New("config: STORE_BACKEND must be memory or redis")
	}

	cfg.SMSProvider = strings.ToLower(strings.TrimSpace(cfg.SMSProvider))
	switch cfg.SMSProvider {
	case "log":
	case "smslocal":
		if cfg.SMSLocalAPIKey == "" {
			return nil, errors.New("config: SMS_LOCAL_API_KEY must be set when SMS_PROVIDER=smslocal")
		}
	case "rabbitmq":
		if cfg.RabbitMQURL == "" {
			return nil, errors.New("config: RABBITMQ_URL must be set when SMS_PROVIDER=rabbitmq")
		}
	default:
		return nil, errors.New("config: SMS_PROVIDER must be log, smslocal or rabbitmq")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// HTTPAddr returns the HTTP listen address built from Port.
func (c *Config) HTTPAddr() string {
	return ":" + strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 720*time.Hour)
}

// OTPTTL parses OTPTTLRaw as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) OTPTTL() time.Duration {
	return parseDuration(c.OTPTTLRaw, 5*time.Minute)
}

// ExpiryGrace parses StoreExpiryGrace. Returns 1m if unset or invalid; 0 is allowed.
func (c *Config) ExpiryGrace() time.Duration {
	d, err := time.ParseDuration(c.StoreExpiryGrace)
	if err != nil || d < 0 {
		return time.Minute
	}
	return d
}

// SweepInterval parses SweepIntervalRaw. Returns 1m if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.SweepIntervalRaw, time.Minute)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka event producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
