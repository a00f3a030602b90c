package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"konver.db"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"INFO"`
	JWTSecret   string `envconfig:"JWT_SECRET"`

	// N8N workflow engine that generates assistant replies.
	N8NWebhookURL string        `envconfig:"N8N_WEBHOOK_URL"`
	ChatTimeout   time.Duration `envconfig:"CHAT_TIMEOUT" default:"280s"`

	// Evolution API WhatsApp gateway.
	EvolutionAPIURL      string        `envconfig:"EVOLUTION_API_URL"`
	EvolutionAPIKey      string        `envconfig:"EVOLUTION_API_KEY"`
	EvolutionHTTPTimeout time.Duration `envconfig:"EVOLUTION_HTTP_TIMEOUT" default:"30s"`
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	if err := envconfig.Process("", &AppConfig); err != nil {
		log.Fatalf("Failed to parse configuration from environment: %v", err)
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}
