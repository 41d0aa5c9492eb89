package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                    string
	StoreBackend            string
	SupabaseURL             string
	SupabaseAPIKey          string
	DatabaseURL             string
	StoreTimeout            time.Duration
	JoinRetryAttempts       int
	RateLimitPerMinute      int
	RateLimitBurst          int
	PhoneRateLimitPerMinute int
	PhoneRateLimitBurst     int
	Environment             string
	OTELEndpoint            string
	OTELInsecure            bool
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	backend := os.Getenv("STORE_BACKEND")
	if backend == "" {
		backend = "supabase"
	}
	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "dev"
	}

	return Config{
		Port:                    port,
		StoreBackend:            backend,
		SupabaseURL:             os.Getenv("SUPABASE_URL"),
		SupabaseAPIKey:          os.Getenv("SUPABASE_APIKEY"),
		DatabaseURL:             os.Getenv("DB_DSN"),
		StoreTimeout:            readDurationSeconds("STORE_TIMEOUT_SECONDS", 10),
		JoinRetryAttempts:       readInt("JOIN_RETRY_ATTEMPTS", 5),
		RateLimitPerMinute:      readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:          readInt("RATE_LIMIT_BURST", 30),
		PhoneRateLimitPerMinute: readInt("PHONE_RATE_LIMIT_PER_MIN", 60),
		PhoneRateLimitBurst:     readInt("PHONE_RATE_LIMIT_BURST", 10),
		Environment:             environment,
		OTELEndpoint:            os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTELInsecure:            readBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
