package rabbitmq

import (
	"fmt"
	"os"
)

// Config holds the connection parameters for the wallet event bus.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
}

// NewConfigFromEnv reads RABBITMQ_HOST/PORT/USER/PASSWORD per spec §6.
func NewConfigFromEnv() *Config {
	return &Config{
		Host:     getEnv("RABBITMQ_HOST", "localhost"),
		Port:     getEnv("RABBITMQ_PORT", "5672"),
		User:     getEnv("RABBITMQ_USER", "guest"),
		Password: getEnv("RABBITMQ_PASSWORD", "guest"),
	}
}

// URL builds the amqp connection string.
func (c *Config) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Password, c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
