package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Invoice  InvoiceConfig  `mapstructure:"invoice"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text|json
}

// BillingConfig holds the pricing policy shared by the resolver and the fare
// calculator so the surcharge flag and the multiplier table cannot drift.
type BillingConfig struct {
	Tier2Surcharge      bool   `mapstructure:"tier2_surcharge"`
	RatesFile           string `mapstructure:"rates_file"`
	LowBalanceThreshold string `mapstructure:"low_balance_threshold"`
}

type PipelineConfig struct {
	StageTimeout  time.Duration `mapstructure:"stage_timeout"`
	Workers       int           `mapstructure:"workers"`
	QueueSize     int           `mapstructure:"queue_size"`
	MaxDeliveries int           `mapstructure:"max_deliveries"`
	DebitRetries  int           `mapstructure:"debit_retries"`
}

type InvoiceConfig struct {
	NodeID int64 `mapstructure:"node_id"`
}

const (
	defaultPort                = 8080
	defaultReadTimeout         = 10 * time.Second
	defaultWriteTimeout        = 15 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultDBPath              = "guatepass.db"
	defaultLoggingLevel        = "info"
	defaultLoggingFormat       = "text"
	defaultLowBalanceThreshold = "50.00"
	defaultStageTimeout        = 5 * time.Second
	defaultWorkers             = 4
	defaultQueueSize           = 256
	defaultMaxDeliveries       = 3
	defaultDebitRetries        = 3
)

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:            defaultPort,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Database: DatabaseConfig{Path: defaultDBPath},
		Logging: LoggingConfig{
			Level:  defaultLoggingLevel,
			Format: defaultLoggingFormat,
		},
		Billing: BillingConfig{
			Tier2Surcharge:      true,
			LowBalanceThreshold: defaultLowBalanceThreshold,
		},
		Pipeline: PipelineConfig{
			StageTimeout:  defaultStageTimeout,
			Workers:       defaultWorkers,
			QueueSize:     defaultQueueSize,
			MaxDeliveries: defaultMaxDeliveries,
			DebitRetries:  defaultDebitRetries,
		},
		Invoice: InvoiceConfig{NodeID: 1},
	}
}

// envBindings maps config keys to the environment variables that override
// them.
var envBindings = map[string]string{
	"http.port":                     "PORT",
	"http.shutdown_timeout":         "SHUTDOWN_TIMEOUT",
	"database.path":                 "DB_PATH",
	"logging.level":                 "LOG_LEVEL",
	"logging.format":                "LOG_FORMAT",
	"billing.tier2_surcharge":       "TIER2_SURCHARGE",
	"billing.rates_file":            "FARE_RATES_FILE",
	"billing.low_balance_threshold": "LOW_BALANCE_THRESHOLD",
	"pipeline.stage_timeout":        "STAGE_TIMEOUT",
	"pipeline.workers":              "BUS_WORKERS",
	"pipeline.queue_size":           "BUS_QUEUE_SIZE",
	"pipeline.max_deliveries":       "BUS_MAX_DELIVERIES",
	"pipeline.debit_retries":        "DEBIT_RETRIES",
	"invoice.node_id":               "INVOICE_NODE_ID",
}

// Load applies, in order, the defaults, the optional YAML file at path and
// the environment variables. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Keys absent from both layers keep their defaults.
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return Config{}, fmt.Errorf("port %d is out of range", cfg.HTTP.Port)
	}
	return cfg, nil
}
