package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Logging  LoggingConfig
	Auth     AuthConfig
	Risk     RiskConfig
	Events   EventsConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	// AllowedOrigins is passed to the websocket upgrader; empty means same-origin only.
	AllowedOrigins []string
	// MetricsToken, when set, is required as X-Admin-Token on /metrics.
	MetricsToken string
	// TrustedProxies are IPs or CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string
}

type LoggingConfig struct {
	Format string // json | text
	Level  string // debug | info | warn | error
}

// AuthConfig holds the demo operator credential and token settings.
type AuthConfig struct {
	JWTSigningKey string
	TokenTTL      time.Duration
	Issuer        string
	DemoUsername  string
	// DemoPasswordHash is a bcrypt hash; DemoPassword is hashed at startup when the hash is empty.
	DemoPasswordHash string
	DemoPassword     string
	// Failed logins per username and address before a temporary lock.
	LockoutMaxFailures int
	LockoutDuration    time.Duration
}

// RiskConfig selects index and store backends.
type RiskConfig struct {
	VelocityBackend string
	VelocityWindow  time.Duration
	SweepInterval   time.Duration
	FlagStore       string
	StateCode       string
}

type EventsConfig struct {
	StoreCapacity int
	AsyncBuffer   int
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Enabled reports whether a Kafka sink should be started.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// LoadEnvFile preloads variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	r := envReader{errs: &errs}

	cfg := Config{
		Server: Server{
			Addr:            r.str("ROLLGUARD_ADDR", ":8080"),
			ShutdownTimeout: r.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  r.list("WS_ALLOWED_ORIGINS"),
			MetricsToken:    r.str("METRICS_TOKEN", ""),
			TrustedProxies:  r.list("TRUSTED_PROXIES"),
		},
		Logging: LoggingConfig{
			Format: strings.ToLower(r.str("LOG_FORMAT", "json")),
			Level:  strings.ToLower(r.str("LOG_LEVEL", "info")),
		},
		Auth: AuthConfig{
			// Development default; override in any shared environment.
			JWTSigningKey:      r.str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			TokenTTL:           r.duration("TOKEN_TTL", 8*time.Hour),
			Issuer:             r.str("JWT_ISSUER", "rollguard"),
			DemoUsername:       r.str("DEMO_USERNAME", "authority@eci.gov"),
			DemoPasswordHash:   r.str("DEMO_PASSWORD_HASH", ""),
			DemoPassword:       r.str("DEMO_PASSWORD", "Authority123!"),
			LockoutMaxFailures: r.integer("LOGIN_MAX_FAILURES", 5),
			LockoutDuration:    r.duration("LOGIN_LOCKOUT_DURATION", 15*time.Minute),
		},
		Risk: RiskConfig{
			VelocityBackend: strings.ToLower(r.str("VELOCITY_BACKEND", BackendMemory)),
			VelocityWindow:  r.duration("VELOCITY_WINDOW", 10*time.Minute),
			SweepInterval:   r.duration("VELOCITY_SWEEP_INTERVAL", time.Minute),
			FlagStore:       strings.ToLower(r.str("FLAG_STORE", BackendMemory)),
			StateCode:       strings.ToUpper(r.str("EPIC_STATE_CODE", "DL")),
		},
		Events: EventsConfig{
			StoreCapacity: r.integer("EVENT_STORE_CAPACITY", 10000),
			AsyncBuffer:   r.integer("EVENT_ASYNC_BUFFER", 1024),
		},
		Postgres: PostgresConfig{
			URL:             r.str("DATABASE_URL", ""),
			MaxOpenConns:    r.integer("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    r.integer("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: r.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:  r.list("KAFKA_BROKERS"),
			Topic:    r.str("KAFKA_TOPIC", "rollguard.events"),
			ClientID: r.str("KAFKA_CLIENT_ID", "rollguard"),
		},
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch c.Risk.VelocityBackend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("VELOCITY_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown VELOCITY_BACKEND %q", c.Risk.VelocityBackend)
	}
	switch c.Risk.FlagStore {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("FLAG_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown FLAG_STORE %q", c.Risk.FlagStore)
	}
	if c.Risk.VelocityWindow <= 0 {
		return fmt.Errorf("VELOCITY_WINDOW must be positive")
	}
	if len(c.Risk.StateCode) != 2 {
		return fmt.Errorf("EPIC_STATE_CODE must be two letters")
	}
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY must not be empty")
	}
	return nil
}

type envReader struct {
	errs *[]string
}

func (r envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r envReader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func (r envReader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}

func (r envReader) list(key string) []string {
	v := r.str(key, "")
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
