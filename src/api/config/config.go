package config

import (
	"log"
	"os"
	"strings"

	"github.com/snowledge-labs/snowvote/src/shared/data"
	"gorm.io/gorm"
)

type Config struct {
	Port           string
	JWTSecret      string
	MySQLDSN       string
	RedisURL       string
	AllowedOrigins []string
}

func Load(db *gorm.DB) Config {
	// Load settings from database
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	jwtSecret := data.GetSetting("jwt_secret")
	if jwtSecret == "" {
		jwtSecret = os.Getenv("JWT_SECRET")
	}
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET not set in database or environment")
	}

	origins := strings.Split(getenv("CORS_ORIGINS", "*"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return Config{
		Port:           getenv("PORT", "8080"),
		JWTSecret:      jwtSecret,
		MySQLDSN:       getenv("MYSQL_DSN", "snowvote:snowvote@tcp(127.0.0.1:3306)/snowvote"),
		RedisURL:       getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		AllowedOrigins: origins,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
