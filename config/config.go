package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	StoreDriver string
	Mongo       MongoConfig
	Redis       RedisConfig
	RabbitMQ    RabbitMQConfig
	JWTSecret   string
	Chat        ChatConfig
	Orders      OrdersConfig
	RateLimit   RateLimitConfig
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// ChatConfig holds the simulated delivery delays applied after a message is sent.
type ChatConfig struct {
	SentDelay      time.Duration
	DeliveredDelay time.Duration
}

type OrdersConfig struct {
	MaxRetries int
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// LoadEnv loads environment variables from a .env file
func LoadEnv() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found; using system environment")
	}
}

// Load reads the service configuration from the environment.
func Load() *Config {
	LoadEnv()

	return &Config{
		Port:        GetEnv("PORT", "3000"),
		StoreDriver: GetEnv("STORE_DRIVER", "mongo"),
		Mongo: MongoConfig{
			URI:      GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: GetEnv("MONGODB_DATABASE", "smartfarm"),
		},
		Redis: RedisConfig{
			Addr:     GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvInt("REDIS_DB", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      GetEnv("RABBITMQ_URL", ""),
			Exchange: GetEnv("RABBITMQ_EXCHANGE", "orders"),
		},
		JWTSecret: GetEnv("JWT_SECRET", ""),
		Chat: ChatConfig{
			SentDelay:      GetEnvDuration("MESSAGE_SENT_DELAY", 500*time.Millisecond),
			DeliveredDelay: GetEnvDuration("MESSAGE_DELIVERED_DELAY", 2*time.Second),
		},
		Orders: OrdersConfig{
			MaxRetries: GetEnvInt("MERGE_MAX_RETRIES", 3),
		},
		RateLimit: RateLimitConfig{
			RPS:   GetEnvFloat("RATE_LIMIT_RPS", 20),
			Burst: GetEnvInt("RATE_LIMIT_BURST", 40),
		},
	}
}

// GetEnv retrieves environment variables with a fallback
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}

func GetEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Invalid number for %s, using default %v", key, fallback)
	}
	return fallback
}

func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s, using default %s", key, fallback)
	}
	return fallback
}
