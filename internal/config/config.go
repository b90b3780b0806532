package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Liveness LivenessConfig
	JWT      JWTConfig
}

var (
	ConfigInstance *Config
	once           sync.Once
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds the Postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type KafkaConfig struct {
	Brokers   []string
	PushTopic string
}

// LivenessConfig holds the session-liveness timings.
// IdleTimeout is how long a session may go without a heartbeat before the
// periodic sweep evicts it; BackgroundGrace is the delay between an app
// signalling background and eviction.
type LivenessConfig struct {
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
	BackgroundGrace time.Duration
}

type JWTConfig struct {
	Secret string
}

func LoadConfig() (*Config, error) {
	once.Do(func() {
		viper.SetDefault("SYNC_HOST", "")
		viper.SetDefault("SYNC_PORT", "8080")
		viper.SetDefault("SYNC_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("SYNC_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("SYNC_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("SYNC_JWT_SECRET", "secret")
		viper.SetDefault("POSTGRES_USER", "postgres")
		viper.SetDefault("POSTGRES_PASSWORD", "password")
		viper.SetDefault("POSTGRES_HOST", "localhost")
		viper.SetDefault("POSTGRES_PORT", "5432")
		viper.SetDefault("POSTGRES_DB", "postgres")
		viper.SetDefault("POSTGRES_SSLMODE", "disable")
		viper.SetDefault("REDIS_HOST", "localhost")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("REDIS_MAX_RETRIES", 3)
		viper.SetDefault("REDIS_POOL_SIZE", 100)
		viper.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
		viper.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
		viper.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
		viper.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
		viper.SetDefault("KAFKA_BROKERS", []string{"localhost:9092"})
		viper.SetDefault("KAFKA_PUSH_TOPIC", "chat.push-notifications")
		viper.SetDefault("LIVENESS_IDLE_TIMEOUT", 120*time.Second)
		viper.SetDefault("LIVENESS_SWEEP_INTERVAL", 60*time.Second)
		viper.SetDefault("LIVENESS_BACKGROUND_GRACE", 300*time.Second)
		viper.AutomaticEnv()

		ConfigInstance = &Config{
			Server: ServerConfig{
				Host:         viper.GetString("SYNC_HOST"),
				Port:         viper.GetString("SYNC_PORT"),
				ReadTimeout:  viper.GetDuration("SYNC_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("SYNC_WRITE_TIMEOUT"),
				IdleTimeout:  viper.GetDuration("SYNC_IDLE_TIMEOUT"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("POSTGRES_HOST"),
				Port:     viper.GetString("POSTGRES_PORT"),
				User:     viper.GetString("POSTGRES_USER"),
				Password: viper.GetString("POSTGRES_PASSWORD"),
				DBName:   viper.GetString("POSTGRES_DB"),
				SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
			},
			Redis: RedisConfig{
				Host:         viper.GetString("REDIS_HOST"),
				Port:         viper.GetString("REDIS_PORT"),
				Password:     viper.GetString("REDIS_PASSWORD"),
				DB:           viper.GetInt("REDIS_DB"),
				MaxRetries:   viper.GetInt("REDIS_MAX_RETRIES"),
				DialTimeout:  viper.GetDuration("REDIS_DIAL_TIMEOUT"),
				ReadTimeout:  viper.GetDuration("REDIS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("REDIS_WRITE_TIMEOUT"),
				PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
				MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
			},
			Kafka: KafkaConfig{
				Brokers:   viper.GetStringSlice("KAFKA_BROKERS"),
				PushTopic: viper.GetString("KAFKA_PUSH_TOPIC"),
			},
			Liveness: LivenessConfig{
				IdleTimeout:     viper.GetDuration("LIVENESS_IDLE_TIMEOUT"),
				SweepInterval:   viper.GetDuration("LIVENESS_SWEEP_INTERVAL"),
				BackgroundGrace: viper.GetDuration("LIVENESS_BACKGROUND_GRACE"),
			},
			JWT: JWTConfig{
				Secret: viper.GetString("SYNC_JWT_SECRET"),
			},
		}
	})

	return ConfigInstance, nil
}
