package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Addr           string   `envconfig:"ADDR" default:":8080"`
	DatabaseDSN    string   `envconfig:"DB_DSN" required:"true"`
	JWTSecret      string   `envconfig:"JWT_SECRET" required:"true"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://127.0.0.1:3000"`
	Env            string   `envconfig:"ENV" default:"development"`
}

// Load reads a .env file if one exists, then the process environment.
// Missing DB_DSN or JWT_SECRET is a startup error, not a default.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
