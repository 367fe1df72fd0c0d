package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Guardrail GuardrailConfig
	ImageGen  ImageGenConfig
	JWT       JWTConfig
	DB        DBConfig
	NATS      NATSConfig
	CORS      CORSConfig
	Throttle  ThrottleConfig
	Audit     AuditConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int

	// WriteTimeout must leave room for the slowest image generation call.
	WriteTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	// DialTimeout bounds both connecting and each command, so a slow backend
	// degrades to the fallback path instead of hanging the request.
	DialTimeout time.Duration
	// RetryAfter suppresses reconnect attempts after a failed dial.
	RetryAfter time.Duration
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Backend values for GuardrailConfig.Backend.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// GuardrailConfig holds the static limits for admin image generation.
// It is read once at startup and never mutated.
type GuardrailConfig struct {
	DailyLimit         int
	RateLimitPerMinute int
	MaintenanceMode    bool
	Namespace          string
	Backend            string
}

type ImageGenConfig struct {
	APIKey        string
	DefaultModel  string
	AllowedModels []string
	Timeout       time.Duration
}

// Configured reports whether a provider credential is present.
func (c ImageGenConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type JWTConfig struct {
	AccessSecret string
	Issuer       string
	AdminRole    string
}

type DBConfig struct {
	Enabled        bool
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type NATSConfig struct {
	URL string
}

func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

type CORSConfig struct {
	AllowedOrigins []string
}

// ThrottleConfig is the coarse per-IP throttle applied to every API route.
type ThrottleConfig struct {
	RequestsPerWindow int
	Window            time.Duration
}

type AuditConfig struct {
	// IPHashKey keys the hash applied to client IPs before they are stored.
	IPHashKey string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		Guardrail: GuardrailConfig{
			DailyLimit:         k.Int("guardrail.daily.limit"),
			RateLimitPerMinute: k.Int("guardrail.rate.limit.per.minute"),
			MaintenanceMode:    k.Bool("guardrail.maintenance.mode"),
			Namespace:          k.String("guardrail.namespace"),
			Backend:            strings.ToLower(k.String("guardrail.backend")),
		},
		ImageGen: ImageGenConfig{
			APIKey:        k.String("imagegen.api.key"),
			DefaultModel:  k.String("imagegen.default.model"),
			AllowedModels: splitList(k.String("imagegen.allowed.models")),
		},
		JWT: JWTConfig{
			AccessSecret: k.String("jwt.access.secret"),
			Issuer:       k.String("jwt.issuer"),
			AdminRole:    k.String("jwt.admin.role"),
		},
		DB: DBConfig{
			Enabled:        k.Bool("db.enabled"),
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(k.String("cors.allowed.origins")),
		},
		Throttle: ThrottleConfig{
			RequestsPerWindow: k.Int("throttle.requests.per.window"),
		},
		Audit: AuditConfig{
			IPHashKey: k.String("audit.ip.hash.key"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Guardrail.DailyLimit == 0 {
		cfg.Guardrail.DailyLimit = 20
	}
	if cfg.Guardrail.RateLimitPerMinute == 0 {
		cfg.Guardrail.RateLimitPerMinute = 5
	}
	if cfg.Guardrail.Namespace == "" {
		cfg.Guardrail.Namespace = "mealwise"
	}
	if cfg.Guardrail.Backend == "" {
		cfg.Guardrail.Backend = BackendRedis
	}
	if cfg.ImageGen.DefaultModel == "" {
		cfg.ImageGen.DefaultModel = "imagen-4.0-generate-001"
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "mealwise"
	}
	if cfg.JWT.AdminRole == "" {
		cfg.JWT.AdminRole = "admin"
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "mealwise"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "mealwise"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Throttle.RequestsPerWindow == 0 {
		cfg.Throttle.RequestsPerWindow = 120
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	var err error
	if cfg.Redis.DialTimeout, err = durationOr(k, "redis.dial.timeout", "500ms"); err != nil {
		return nil, err
	}
	if cfg.Redis.RetryAfter, err = durationOr(k, "redis.retry.after", "5s"); err != nil {
		return nil, err
	}
	if cfg.ImageGen.Timeout, err = durationOr(k, "imagegen.timeout", "60s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = durationOr(k, "server.write.timeout", "90s"); err != nil {
		return nil, err
	}
	if cfg.Throttle.Window, err = durationOr(k, "throttle.window", "1m"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func durationOr(k *koanf.Koanf, key, def string) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
