package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/daypage/backend/internal/models"
)

type Config struct {
	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	SECRET_KEY string

	KAFKA_ADDRESS string

	SMTP_HOST     string
	SMTP_PORT     string
	SMTP_USER     string
	SMTP_PASSWORD string

	BASE_URL              string
	UPLOAD_DIR            string
	VERIFICATION_STRATEGY string
	LOG_LEVEL             string
	HTTP_ADDR             string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		ES_URL:      os.Getenv("ES_URL"),
		ES_USER:     os.Getenv("ES_USER"),
		ES_PASSWORD: os.Getenv("ES_PASSWORD"),

		SECRET_KEY: os.Getenv("SECRET_KEY"),

		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),

		SMTP_HOST:     os.Getenv("SMTP_HOST"),
		SMTP_PORT:     os.Getenv("SMTP_PORT"),
		SMTP_USER:     os.Getenv("SMTP_USER"),
		SMTP_PASSWORD: os.Getenv("SMTP_PASSWORD"),

		BASE_URL:              getenvDefault("BASE_URL", "http://localhost:8080"),
		UPLOAD_DIR:            getenvDefault("UPLOAD_DIR", "./uploads"),
		VERIFICATION_STRATEGY: getenvDefault("VERIFICATION_STRATEGY", "link"),
		LOG_LEVEL:             getenvDefault("LOG_LEVEL", "info"),
		HTTP_ADDR:             getenvDefault("HTTP_ADDR", ":8080"),
	}

	return config, nil
}

// Validate reports the first missing required value. The caller must treat
// any error as fatal before serving traffic.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"SECRET_KEY", c.SECRET_KEY},
		{"DB_HOST", c.DB_HOST},
		{"DB_PORT", c.DB_PORT},
		{"DB_USER", c.DB_USER},
		{"DB_NAME", c.DB_NAME},
		{"SMTP_HOST", c.SMTP_HOST},
		{"SMTP_PORT", c.SMTP_PORT},
		{"ES_URL", c.ES_URL},
		{"KAFKA_ADDRESS", c.KAFKA_ADDRESS},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("configuration: %s is required", r.name)
		}
	}

	if c.VERIFICATION_STRATEGY != "link" && c.VERIFICATION_STRATEGY != "code" {
		return fmt.Errorf("configuration: VERIFICATION_STRATEGY must be \"link\" or \"code\", got %q", c.VERIFICATION_STRATEGY)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Page{}, &models.FileModel{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
