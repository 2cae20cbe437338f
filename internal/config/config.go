// Package config loads the process configuration.
//
// Precedence, lowest first: built-in defaults, the YAML file named by
// CONFIG_FILE, then environment variables (a .env file in the working
// directory is loaded into the environment first).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting used by cmd/server and cmd/payflow
type Config struct {
	// Database. DBConnStr wins over the individual fields when set.
	DBConnStr  string `yaml:"db_conn_str"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`

	GRPCAddr    string `yaml:"grpc_addr"`
	HTTPAddr    string `yaml:"http_addr"`
	GatewayAddr string `yaml:"gateway_addr"`
	APIToken    string `yaml:"api_token"`

	// Empty RedisAddr disables the catalog cache
	RedisAddr       string        `yaml:"redis_addr"`
	CatalogCacheTTL time.Duration `yaml:"catalog_cache_ttl"`

	// Empty KafkaBrokers disables event publishing
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	PendingTTL   time.Duration `yaml:"pending_ttl"`
	ReapInterval time.Duration `yaml:"reap_interval"`

	// Room that receives the demo bank destinations on startup, if any
	SeedDemoRoom string `yaml:"seed_demo_room"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		DBHost:          "localhost",
		DBPort:          "5432",
		DBUser:          "postgres",
		DBPassword:      "postgres",
		DBName:          "roomsplit",
		GRPCAddr:        ":8080",
		HTTPAddr:        ":3000",
		GatewayAddr:     "localhost:8080",
		APIToken:        "dev-token",
		CatalogCacheTTL: 5 * time.Minute,
		KafkaTopic:      "payments.transactions",
		PendingTTL:      30 * time.Minute,
		ReapInterval:    time.Minute,
	}
}

// Load builds the configuration from defaults, CONFIG_FILE and the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.DBConnStr, "DB_CONN_STR")
	setString(&c.DBHost, "DB_HOST")
	setString(&c.DBPort, "DB_PORT")
	setString(&c.DBUser, "DB_USER")
	setString(&c.DBPassword, "DB_PASSWORD")
	setString(&c.DBName, "DB_NAME")
	setString(&c.GRPCAddr, "GRPC_ADDR")
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.GatewayAddr, "GATEWAY_ADDR")
	setString(&c.APIToken, "API_TOKEN")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.KafkaTopic, "KAFKA_TOPIC")
	setString(&c.SeedDemoRoom, "SEED_DEMO_ROOM")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}

	if err := setDuration(&c.CatalogCacheTTL, "CATALOG_CACHE_TTL"); err != nil {
		return err
	}
	if err := setDuration(&c.PendingTTL, "PENDING_TTL"); err != nil {
		return err
	}
	if err := setDuration(&c.ReapInterval, "REAP_INTERVAL"); err != nil {
		return err
	}

	return nil
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	if c.APIToken == "" {
		return errors.New("API_TOKEN cannot be empty")
	}
	if c.PendingTTL <= 0 {
		return errors.New("PENDING_TTL must be positive")
	}
	if c.ReapInterval <= 0 {
		return errors.New("REAP_INTERVAL must be positive")
	}
	if c.SeedDemoRoom != "" {
		if _, err := uuid.Parse(c.SeedDemoRoom); err != nil {
			return fmt.Errorf("SEED_DEMO_ROOM must be a UUID: %w", err)
		}
	}
	return nil
}

// DatabaseURL returns DBConnStr, or builds one from the individual fields
func (c *Config) DatabaseURL() string {
	if c.DBConnStr != "" {
		return c.DBConnStr
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
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
