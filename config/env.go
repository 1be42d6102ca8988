package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Env is the process configuration read from the environment (and .env).
type Env struct {
	DatabaseURL       string
	Port              string
	GatewayToken      string
	ProgressionFile   string
	ProgressionR2Key  string
	ReconcileInterval time.Duration
	CalendarTZ        string
	AllowedOrigins    []string
	R2                R2Source
}

// LoadEnv loads .env when present and reads the service configuration.
func LoadEnv() (*Env, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	env := &Env{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Port:             getEnv("PORT", "5200"),
		GatewayToken:     os.Getenv("GATEWAY_TOKEN"),
		ProgressionFile:  os.Getenv("PROGRESSION_CONFIG"),
		ProgressionR2Key: os.Getenv("PROGRESSION_CONFIG_R2_KEY"),
		CalendarTZ:       os.Getenv("CALENDAR_TZ"),
		R2: R2Source{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
		},
	}
	if env.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable not set")
	}

	interval, err := time.ParseDuration(getEnv("RECONCILE_INTERVAL", "1m"))
	if err != nil {
		return nil, errors.New("RECONCILE_INTERVAL must be a duration like 30s or 5m")
	}
	if interval <= 0 {
		return nil, errors.New("RECONCILE_INTERVAL must be positive")
	}
	env.ReconcileInterval = interval

	for _, origin := range strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			env.AllowedOrigins = append(env.AllowedOrigins, origin)
		}
	}
	return env, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
