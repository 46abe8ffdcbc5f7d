package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GatewayConfig carries the credentials and switches for one mobile-money
// gateway vendor. When Enabled is false the client simulates acceptance so
// the payment flow can be exercised without live credentials.
type GatewayConfig struct {
	ClientID  string
	APIKey    string
	APISecret string
	BaseURL   string
	Enabled   bool
}

type Config struct {
	Port string

	// StoreDriver selects the transaction store backend: memory, mongo or postgres.
	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	PostgresDSN   string

	// GatewayProvider selects the vendor integration: clickpesa or sonicpesa.
	GatewayProvider string
	ClickPesa       GatewayConfig
	SonicPesa       GatewayConfig

	KafkaBrokers []string

	JWTSecret     string
	CallbackToken string

	AllowedOrigins []string

	SweepEnabled  bool
	SweepInterval time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load builds the configuration from environment variables. Call after
// godotenv has populated the environment from .env.
func Load() Config {
	return Config{
		Port: getenv("PORT", "8080"),

		StoreDriver:   getenv("STORE_DRIVER", "memory"),
		MongoURI:      os.Getenv("MONGOURI"),
		MongoDatabase: getenv("MONGO_DATABASE", "hasetdb"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),

		GatewayProvider: getenv("GATEWAY_PROVIDER", "sonicpesa"),
		ClickPesa: GatewayConfig{
			ClientID: os.Getenv("CLICKPESA_CLIENT_ID"),
			APIKey:   os.Getenv("CLICKPESA_API_KEY"),
			BaseURL:  getenv("CLICKPESA_BASE_URL", "https://api.clickpesa.com"),
			Enabled:  getBool("CLICKPESA_ENABLED", false),
		},
		SonicPesa: GatewayConfig{
			APIKey:    os.Getenv("SONICPESA_API_KEY"),
			APISecret: os.Getenv("SONICPESA_SECRET"),
			BaseURL:   os.Getenv("SONICPESA_BASE_URL"),
			Enabled:   getBool("SONICPESA_ENABLED", false),
		},

		KafkaBrokers: getList("KAFKA_BROKERS"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		CallbackToken: os.Getenv("CALLBACK_TOKEN"),

		AllowedOrigins: getList("ALLOWED_ORIGINS"),

		SweepEnabled:  getBool("SWEEP_ENABLED", false),
		SweepInterval: getDuration("SWEEP_INTERVAL", 30*time.Second),
	}
}
