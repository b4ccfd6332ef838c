package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config carries every tunable the server needs. Values come from the
// environment, optionally seeded from a .env file.
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	MongoURI  string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoName string `envconfig:"MONGO_DB" default:"tienda"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret string `envconfig:"JWT_SECRET" default:"change_me_in_production"`

	// CartTTL is the rolling cart expiration window.
	CartTTL time.Duration `envconfig:"CART_TTL" default:"4h"`

	ResetTokenTTL time.Duration `envconfig:"RESET_TOKEN_TTL" default:"1h"`
	ResetURLBase  string        `envconfig:"RESET_URL_BASE" default:"http://localhost:8080"`

	SendgridAPIKey string `envconfig:"SENDGRID_API_KEY" default:""`
	MailFrom       string `envconfig:"MAIL_FROM" default:"no-reply@tienda.local"`

	UploadDir string `envconfig:"UPLOAD_DIR" default:"static/productpic"`
}

// Load reads .env if present and resolves the typed configuration.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
