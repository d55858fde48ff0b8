package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config is the full environment surface of the service.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	SeedDB      bool
}

// Load reads the environment (with optional .env file) into a Config.
// A missing .env is fine; variables may come from the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getenvWithDefault("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		SeedDB:      os.Getenv("SEED_DB") == "true",
	}
}

func getenvWithDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
