package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log       Logger    `mapstructure:"logger"`
	DB        Database  `mapstructure:"database"`
	API       API       `mapstructure:"api"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Oracle    Oracle    `mapstructure:"oracle"`
	Trading   Trading   `mapstructure:"trading"`
	Cache     Cache     `mapstructure:"cache"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type Scheduler struct {
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	TimeoutDuration time.Duration `mapstructure:"timeout_duration"`
}

type API struct {
	Port int `mapstructure:"port"`
}

// Oracle configures the external price oracle adapter.
type Oracle struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRequestPerMin int           `mapstructure:"max_request_per_min"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
}

// Trading holds knobs for the trade lifecycle and the auto-trading engine.
type Trading struct {
	// Seed for the auto-trading random source. Zero means time-seeded.
	RandomSeed int64 `mapstructure:"random_seed"`
	// WalletAddressPools maps a crypto symbol to its deposit address pool,
	// e.g. "BTC" -> ["bc1...", ...]. Addresses are assigned round-robin by
	// user ID at provisioning time.
	WalletAddressPools map[string][]string `mapstructure:"wallet_address_pools"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Running on env vars only is fine.
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Encoding == "" {
		cfg.Log.Encoding = "json"
	}
	if cfg.API.Port <= 0 {
		cfg.API.Port = 8080
	}
	if cfg.Scheduler.MaxConcurrency <= 0 {
		cfg.Scheduler.MaxConcurrency = 5
	}
	if cfg.Scheduler.PollInterval <= 0 {
		cfg.Scheduler.PollInterval = time.Minute
	}
	if cfg.Scheduler.TimeoutDuration <= 0 {
		cfg.Scheduler.TimeoutDuration = 5 * time.Minute
	}
	if cfg.Oracle.Timeout <= 0 {
		cfg.Oracle.Timeout = 10 * time.Second
	}
	if cfg.Oracle.MaxRequestPerMin <= 0 {
		cfg.Oracle.MaxRequestPerMin = 60
	}
	if cfg.Oracle.CacheTTL <= 0 {
		cfg.Oracle.CacheTTL = 10 * time.Minute
	}
	if cfg.Cache.DefaultExpiration <= 0 {
		cfg.Cache.DefaultExpiration = 10 * time.Minute
	}
	if cfg.Cache.CleanupInterval <= 0 {
		cfg.Cache.CleanupInterval = 15 * time.Minute
	}
}
