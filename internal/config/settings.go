package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Settings is the service configuration read from the environment.
type Settings struct {
	Port               string
	DatabaseURL        string
	RedisURL           string
	CasesPath          string
	RateRPS            float64 // optimize requests per second per tenant, 0 disables the limit
	RateBurst          int
	HistoryLength      int
	MaxRestarts        int
	WebhookMaxAttempts int
	DBMigrate          bool
}

// Load reads a .env file when present and builds Settings from the
// environment. A missing .env is not an error.
func Load() Settings {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
	return FromEnv()
}

func FromEnv() Settings {
	return Settings{
		Port:               Get("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		CasesPath:          Get("CASES_PATH", "configs/cases.yaml"),
		RateRPS:            GetFloat("OPTIMIZE_RATE_RPS", 5),
		RateBurst:          GetInt("OPTIMIZE_RATE_BURST", 10),
		HistoryLength:      GetInt("LAHC_HISTORY_LENGTH", 1000),
		MaxRestarts:        GetInt("LAHC_MAX_RESTARTS", 16),
		WebhookMaxAttempts: GetInt("WEBHOOK_MAX_ATTEMPTS", 8),
		DBMigrate:          GetBool("DB_MIGRATE", true),
	}
}

func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: ignoring %s=%q: %v", key, v, err)
		return fallback
	}
	return n
}

func GetFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: ignoring %s=%q: %v", key, v, err)
		return fallback
	}
	return f
}

func GetBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: ignoring %s=%q: %v", key, v, err)
		return fallback
	}
	return b
}
