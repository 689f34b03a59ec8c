package config

import (
	"fmt"
	"time"
)

// Audit write failure modes
const (
	AuditModeFallback = "fallback"
	AuditModeStrict   = "strict"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port        string
	Store       string
	DatabaseURL string
	AutoMigrate bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// CacheRedeleteDelay is the gap before the second entity cache delete
	CacheRedeleteDelay time.Duration

	JWTSecret   string
	JWKSURL     string
	CORSOrigins []string

	DefaultCurrency     string
	PricingDefaultsFile string
	StatusAllowUnknown  bool

	AuditFailureMode  string
	AuditFallbackPath string

	KafkaBrokers    []string
	KafkaAuditTopic string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	ReconcileInterval    time.Duration
	ReconcileConcurrency int
	ArchiveInterval      time.Duration
}

// Load reads the process environment. Call LoadEnv first to pick up .env files.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        GetEnv("PORT", "8080"),
		Store:       GetEnv("STORE", StorePostgres),
		DatabaseURL: GetEnv("DATABASE_URL", ""),
		AutoMigrate: GetEnvBool("AUTO_MIGRATE", false),

		RedisAddr:     GetEnv("REDIS_ADDR", ""),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       GetEnvInt("REDIS_DB", 0),
		CacheTTL:      GetEnvDuration("CACHE_TTL", 30*time.Second),

		CacheRedeleteDelay: GetEnvDuration("CACHE_REDELETE_DELAY", time.Second),

		JWTSecret:   GetEnv("JWT_SECRET", ""),
		JWKSURL:     GetEnv("JWKS_URL", ""),
		CORSOrigins: GetEnvList("CORS_ORIGINS"),

		DefaultCurrency:     GetEnv("DEFAULT_CURRENCY", "USD"),
		PricingDefaultsFile: GetEnv("PRICING_DEFAULTS_FILE", ""),
		StatusAllowUnknown:  GetEnvBool("STATUS_ALLOW_UNKNOWN", false),

		AuditFailureMode:  GetEnv("AUDIT_FAILURE_MODE", AuditModeFallback),
		AuditFallbackPath: GetEnv("AUDIT_FALLBACK_PATH", ""),

		KafkaBrokers:    GetEnvList("KAFKA_BROKERS"),
		KafkaAuditTopic: GetEnv("KAFKA_AUDIT_TOPIC", "verimeter.audit"),

		MinioEndpoint:  GetEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: GetEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: GetEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    GetEnv("MINIO_AUDIT_BUCKET", "audit-archive"),
		MinioUseSSL:    GetEnvBool("MINIO_USE_SSL", false),

		ReconcileInterval:    GetEnvDuration("RECONCILE_INTERVAL", 15*time.Minute),
		ReconcileConcurrency: GetEnvInt("RECONCILE_CONCURRENCY", 4),
		ArchiveInterval:      GetEnvDuration("AUDIT_ARCHIVE_INTERVAL", 24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE=%s", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}

	switch c.AuditFailureMode {
	case AuditModeFallback, AuditModeStrict:
	default:
		return fmt.Errorf("AUDIT_FAILURE_MODE must be %q or %q", AuditModeFallback, AuditModeStrict)
	}

	if c.ReconcileConcurrency < 1 {
		c.ReconcileConcurrency = 1
	}
	return nil
}

// MinioEnabled reports whether archive storage is configured
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}
