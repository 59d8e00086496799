package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string  `yaml:"env" env:"ENV" env-default:"dev"`
	Service string  `yaml:"service" env:"SERVICE_NAME" env-default:"shopcore"`
	LogFile string  `yaml:"log_file" env:"LOG_FILE"`
	HTTP    HTTP    `yaml:"http"`
	Ledger  Ledger  `yaml:"ledger"`
	Orders  Orders  `yaml:"orders"`
	Sweeper Sweeper `yaml:"sweeper"`
	Gateway Gateway `yaml:"gateway"`
	Seed    []Seed  `yaml:"seed"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

// Ledger selects the stock ledger backend: "memory" for a single instance,
// "redis" when several instances must share one ledger.
type Ledger struct {
	Backend string `yaml:"backend" env:"LEDGER_BACKEND" env-default:"memory"`
	Redis   string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

// Orders selects the order store backend: "memory" or "postgres".
type Orders struct {
	Backend string `yaml:"backend" env:"ORDERS_BACKEND" env-default:"memory"`
	URL     string `yaml:"url" env:"DB_URL"`
}

type Sweeper struct {
	Interval       time.Duration `yaml:"interval" env:"SWEEP_INTERVAL" env-default:"1m"`
	PendingTimeout time.Duration `yaml:"pending_timeout" env:"PENDING_TIMEOUT" env-default:"30m"`
}

// Gateway configures the local payment gateway simulator. Disabled, the core
// only accepts reports on the webhook.
type Gateway struct {
	SimulatorEnabled bool          `yaml:"simulator_enabled" env:"GATEWAY_SIMULATOR" env-default:"false"`
	SuccessRate      float64       `yaml:"success_rate" env-default:"0.7"`
	Delay            time.Duration `yaml:"delay" env-default:"2s"`
}

// Seed is one catalog entry loaded at startup. Price is in minor units.
type Seed struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price int64  `yaml:"price"`
	Stock int    `yaml:"stock"`
}

// MustLoad reads CONFIG_PATH (yaml) when present, falling back to environment
// variables only. It exits the process on malformed config.
func MustLoad() *Config {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/local.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			log.Fatalf("error reading config %s: %v", path, err)
		}
		return &cfg
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("error reading config from env: %v", err)
	}
	return &cfg
}
