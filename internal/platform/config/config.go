package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	// PostgresDSN selects the Postgres substrate when set; otherwise the
	// in-memory substrate is used. MirrorDSN enables the read mirror.
	PostgresDSN string
	MirrorDSN   string

	// RedisURL enables the verification-result cache when set.
	RedisURL string
	CacheTTL time.Duration

	// KafkaBrokers enables the audit Kafka sink when non-empty.
	KafkaBrokers []string
	AuditTopic   string

	JWTSigningKey string
	JWTIssuer     string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:          getenv("VERYPHY_ADDR", ":8080"),
		PostgresDSN:   os.Getenv("VERYPHY_POSTGRES_DSN"),
		MirrorDSN:     os.Getenv("VERYPHY_MIRROR_DSN"),
		RedisURL:      os.Getenv("VERYPHY_REDIS_URL"),
		CacheTTL:      5 * time.Minute,
		AuditTopic:    getenv("VERYPHY_AUDIT_TOPIC", "veryphy.audit"),
		JWTSigningKey: os.Getenv("VERYPHY_JWT_SIGNING_KEY"),
		JWTIssuer:     getenv("VERYPHY_JWT_ISSUER", "veryphy"),
	}
	if ttl := os.Getenv("VERYPHY_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.CacheTTL = d
		}
	}
	if brokers := os.Getenv("VERYPHY_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if cfg.JWTSigningKey == "" {
		// Development default; override in any real deployment.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
