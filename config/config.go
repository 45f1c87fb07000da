package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Cache       CacheConfig       `yaml:"cache"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Events      EventsConfig      `yaml:"events"`
	Queue       QueueConfig       `yaml:"queue"`
	Reservation ReservationConfig `yaml:"reservation"`
	Worker      WorkerConfig      `yaml:"worker"`
	Log         LogConfig         `yaml:"log"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`

	// MigrateOnStart applies embedded migrations when the API starts.
	MigrateOnStart bool `yaml:"migrate_on_start"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CacheConfig struct {
	// SeatMapTTLMs bounds how stale a cached seat listing may be. Zero
	// leaves the default; negative disables the cache.
	SeatMapTTLMs int `yaml:"seat_map_ttl_ms"`
}

type KafkaConfig struct {
	Brokers          []string `yaml:"brokers"`
	ReservationTopic string   `yaml:"reservation_topic"`
	GroupID          string   `yaml:"group_id"`
}

// EventsConfig selects the transport behind the outbound event port.
type EventsConfig struct {
	Transport      string `yaml:"transport"` // kafka | rabbitmq | none
	RabbitMQURL    string `yaml:"rabbitmq_url"`
	Exchange       string `yaml:"exchange"`
	PublishTimeout int    `yaml:"publish_timeout_seconds"`

	// PublishAttempts and RetryBackoffMs apply to the Kafka transport.
	PublishAttempts int `yaml:"publish_attempts"`
	RetryBackoffMs  int `yaml:"retry_backoff_ms"`
}

type QueueConfig struct {
	MaxActiveUsers       int `yaml:"max_active_users"`
	TokenTTLMinutes      int `yaml:"token_ttl_minutes"`
	WaitSecondsPerUser   int `yaml:"wait_seconds_per_user"`
	ActivationIntervalMs int `yaml:"activation_interval_ms"`
}

type ReservationConfig struct {
	HoldMinutes    int `yaml:"hold_minutes"`
	LockTTLSeconds int `yaml:"lock_ttl_seconds"`
}

type WorkerConfig struct {
	ExpirationSweepSeconds int `yaml:"expiration_sweep_seconds"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func (c CacheConfig) SeatMapTTL() time.Duration {
	if c.SeatMapTTLMs < 0 {
		return 0
	}
	return time.Duration(c.SeatMapTTLMs) * time.Millisecond
}

func (q QueueConfig) TokenTTL() time.Duration {
	return time.Duration(q.TokenTTLMinutes) * time.Minute
}

func (q QueueConfig) WaitPerUser() time.Duration {
	return time.Duration(q.WaitSecondsPerUser) * time.Second
}

func (q QueueConfig) ActivationInterval() time.Duration {
	return time.Duration(q.ActivationIntervalMs) * time.Millisecond
}

func (r ReservationConfig) HoldDuration() time.Duration {
	return time.Duration(r.HoldMinutes) * time.Minute
}

func (r ReservationConfig) LockTTL() time.Duration {
	return time.Duration(r.LockTTLSeconds) * time.Second
}

func (w WorkerConfig) ExpirationSweep() time.Duration {
	return time.Duration(w.ExpirationSweepSeconds) * time.Second
}

func (e EventsConfig) Timeout() time.Duration {
	return time.Duration(e.PublishTimeout) * time.Second
}

func (e EventsConfig) RetryBackoff() time.Duration {
	return time.Duration(e.RetryBackoffMs) * time.Millisecond
}

// LoadConfig reads a YAML file, expands ${VAR} references from the
// environment and fills unset values with defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Cache.SeatMapTTLMs == 0 {
		c.Cache.SeatMapTTLMs = 2000
	}
	if c.Kafka.ReservationTopic == "" {
		c.Kafka.ReservationTopic = "reservation-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "concertseats-notifications"
	}
	if c.Events.Transport == "" {
		c.Events.Transport = "kafka"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "concertseats.events"
	}
	if c.Events.PublishTimeout == 0 {
		c.Events.PublishTimeout = 10
	}
	if c.Events.PublishAttempts == 0 {
		c.Events.PublishAttempts = 3
	}
	if c.Events.RetryBackoffMs == 0 {
		c.Events.RetryBackoffMs = 500
	}
	if c.Queue.MaxActiveUsers == 0 {
		c.Queue.MaxActiveUsers = 100
	}
	if c.Queue.TokenTTLMinutes == 0 {
		c.Queue.TokenTTLMinutes = 30
	}
	if c.Queue.WaitSecondsPerUser == 0 {
		c.Queue.WaitSecondsPerUser = 10
	}
	if c.Queue.ActivationIntervalMs == 0 {
		c.Queue.ActivationIntervalMs = 5000
	}
	if c.Reservation.HoldMinutes == 0 {
		c.Reservation.HoldMinutes = 5
	}
	if c.Reservation.LockTTLSeconds == 0 {
		c.Reservation.LockTTLSeconds = 10
	}
	if c.Worker.ExpirationSweepSeconds == 0 {
		c.Worker.ExpirationSweepSeconds = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	switch c.Events.Transport {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required for kafka transport")
		}
	case "rabbitmq":
		if c.Events.RabbitMQURL == "" {
			return fmt.Errorf("events.rabbitmq_url is required for rabbitmq transport")
		}
	case "none":
	default:
		return fmt.Errorf("unknown events.transport %q", c.Events.Transport)
	}
	if c.Queue.MaxActiveUsers < 0 {
		return fmt.Errorf("queue.max_active_users must be positive")
	}
	return nil
}
