package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	ClockLayout = "15:04"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Reservation ReservationConfig `yaml:"reservation"`
	Worker      WorkerConfig      `yaml:"worker"`
	Log         LogConfig         `yaml:"log"`
	// Fleet seeds the memory driver and is inserted by "airresctl migrate".
	Fleet []FlightConfig `yaml:"fleet"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN prefers an explicit URL over the individual connection fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig leaves caching and scope locking off when Addr is empty.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig leaves event publishing off when Brokers is empty.
type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	EventsTopic        string   `yaml:"events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
	PublishRetries     int      `yaml:"publish_retries"`
	// PublishTimeoutMillis bounds how long a committed request waits on the
	// broker before its events are given up.
	PublishTimeoutMillis int `yaml:"publish_timeout_ms"`
}

func (k KafkaConfig) PublishTimeout() time.Duration {
	return time.Duration(k.PublishTimeoutMillis) * time.Millisecond
}

type ReservationConfig struct {
	MaxConflictRetries     int     `yaml:"max_conflict_retries"`
	RetryDelayMillis       int     `yaml:"retry_delay_ms"`
	LockTTLSeconds         int     `yaml:"lock_ttl_seconds"`
	FlightsCacheTTLSeconds int     `yaml:"flights_cache_ttl_seconds"`
	DefaultEconomyFare     float64 `yaml:"default_economy_fare"`
	DefaultBusinessFare    float64 `yaml:"default_business_fare"`
	RecomputePromotionFare bool    `yaml:"recompute_promotion_fare"`
}

func (r ReservationConfig) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelayMillis) * time.Millisecond
}

func (r ReservationConfig) LockTTL() time.Duration {
	return time.Duration(r.LockTTLSeconds) * time.Second
}

func (r ReservationConfig) FlightsCacheTTL() time.Duration {
	return time.Duration(r.FlightsCacheTTLSeconds) * time.Second
}

type WorkerConfig struct {
	WaitlistSweepMinutes int `yaml:"waitlist_sweep_minutes"`
}

func (w WorkerConfig) SweepInterval() time.Duration {
	return time.Duration(w.WaitlistSweepMinutes) * time.Minute
}

type FlightConfig struct {
	Name          string  `yaml:"name"`
	EconomySeats  int     `yaml:"economy_seats"`
	BusinessSeats int     `yaml:"business_seats"`
	EconomyFare   float64 `yaml:"economy_fare"`
	BusinessFare  float64 `yaml:"business_fare"`
	Source        string  `yaml:"source"`
	Destination   string  `yaml:"destination"`
	// Departure and Arrival are wall-clock times in HH:MM form.
	Departure string `yaml:"departure"`
	Arrival   string `yaml:"arrival"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig reads the YAML file at path, loads a .env file from the working
// directory when present and lets AIRRES_* variables override the file.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse applies defaults and environment overrides to a YAML document and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AIRRES_DATABASE_DSN"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("AIRRES_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("AIRRES_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("AIRRES_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Kafka.EventsTopic == "" {
		c.Kafka.EventsTopic = "reservation_events"
	}
	if c.Kafka.NotificationsTopic == "" {
		c.Kafka.NotificationsTopic = "notifications"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "airres-worker"
	}
	if c.Kafka.PublishRetries == 0 {
		c.Kafka.PublishRetries = 3
	}
	if c.Kafka.PublishTimeoutMillis == 0 {
		c.Kafka.PublishTimeoutMillis = 2000
	}
	if c.Reservation.MaxConflictRetries == 0 {
		c.Reservation.MaxConflictRetries = 3
	}
	if c.Reservation.RetryDelayMillis == 0 {
		c.Reservation.RetryDelayMillis = 50
	}
	if c.Reservation.LockTTLSeconds == 0 {
		c.Reservation.LockTTLSeconds = 10
	}
	if c.Reservation.FlightsCacheTTLSeconds == 0 {
		c.Reservation.FlightsCacheTTLSeconds = 60
	}
	if c.Reservation.DefaultEconomyFare == 0 {
		c.Reservation.DefaultEconomyFare = 850
	}
	if c.Reservation.DefaultBusinessFare == 0 {
		c.Reservation.DefaultBusinessFare = 2040
	}
	if c.Worker.WaitlistSweepMinutes == 0 {
		c.Worker.WaitlistSweepMinutes = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
			errs = append(errs, errors.New("database: url or host and name are required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database: unknown driver %q", c.Database.Driver))
	}
	if c.Reservation.MaxConflictRetries < 0 {
		errs = append(errs, errors.New("reservation: max_conflict_retries must not be negative"))
	}
	if c.Reservation.DefaultEconomyFare < 0 || c.Reservation.DefaultBusinessFare < 0 {
		errs = append(errs, errors.New("reservation: default fares must not be negative"))
	}
	if c.Worker.WaitlistSweepMinutes < 0 {
		errs = append(errs, errors.New("worker: waitlist_sweep_minutes must not be negative"))
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log: unknown format %q", c.Log.Format))
	}
	for i, f := range c.Fleet {
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, fmt.Errorf("fleet[%d]: name is required", i))
		}
		if f.EconomySeats < 0 || f.BusinessSeats < 0 {
			errs = append(errs, fmt.Errorf("fleet[%d]: seat counts must not be negative", i))
		}
		for _, clock := range []string{f.Departure, f.Arrival} {
			if clock == "" {
				continue
			}
			if _, err := time.Parse(ClockLayout, clock); err != nil {
				errs = append(errs, fmt.Errorf("fleet[%d]: bad time %q, want HH:MM", i, clock))
			}
		}
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
