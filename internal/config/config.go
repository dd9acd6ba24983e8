package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	ServerPort string
	JWTSecret  string

	AIAPIKey  string
	AIModel   string
	AIBaseURL string
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "flowboard_user"),
		DBPassword: getEnv("DB_PASSWORD", "flowboard_pass"),
		DBName:     getEnv("DB_NAME", "flowboard_db"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		JWTSecret:  getEnv("JWT_SECRET", "supersecretkey"),

		// AI_API_KEY has no default on purpose: the chat endpoint
		// refuses to run without it.
		AIAPIKey:  getEnv("AI_API_KEY", ""),
		AIModel:   getEnv("AI_MODEL", "google/gemini-3-flash-preview"),
		AIBaseURL: getEnv("AI_BASE_URL", "https://ai.gateway.lovable.dev/v1"),
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
