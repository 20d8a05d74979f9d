package config

import (
	"fmt"
	"strings"

	"cexio-trade-bot-go/internal/models"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Cexio    Cexio    `mapstructure:"cexio"`
	Trading  Trading  `mapstructure:"trading"`
	Report   Report   `mapstructure:"report"`
	Notify   Notify   `mapstructure:"notify"`
	Redis    Redis    `mapstructure:"redis"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Cexio holds the configuration for the CEX.IO API.
type Cexio struct {
	Username       string  `mapstructure:"username"`
	ApiKey         string  `mapstructure:"apiKey"`
	SecretKey      string  `mapstructure:"secretKey"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Trading holds the parameters for the trading logic.
//
// The four thresholds are fractions relative to the price of the last
// executed order: Buy/Sell fire the profit-taking trades, UpswingBuy and
// DownswingSell fire the stop-style reversing trades when the price moves
// against us instead.
type Trading struct {
	Pair                   string  `mapstructure:"pair"`
	Enabled                bool    `mapstructure:"enabled"`
	BuyThreshold           float64 `mapstructure:"buy_threshold"`
	SellThreshold          float64 `mapstructure:"sell_threshold"`
	UpswingBuyThreshold    float64 `mapstructure:"upswing_buy_threshold"`
	DownswingSellThreshold float64 `mapstructure:"downswing_sell_threshold"`
	Fee                    float64 `mapstructure:"fee"` // flat quote-currency amount reserved when sizing a buy
	AutoCancelMinutes      int     `mapstructure:"auto_cancel_minutes"`
	TickInterval           int     `mapstructure:"tick_interval"`      // seconds between decision passes
	ReconcileInterval      int     `mapstructure:"reconcile_interval"` // seconds between reconciliation passes
	DisplayTimezone        string  `mapstructure:"display_timezone"`   // for notification text only, never for comparisons
}

// Report holds the configuration for the daily summary report.
type Report struct {
	Enabled bool `mapstructure:"enabled"`
	Hour    int  `mapstructure:"hour"` // display-timezone hour at which the report fires
}

// Notify holds the configuration for the notification backend.
type Notify struct {
	Backend string `mapstructure:"backend"` // "log", "smtp" or "kafka"
	SMTP    SMTP   `mapstructure:"smtp"`
	Kafka   Kafka  `mapstructure:"kafka"`
}

// SMTP holds the mail settings for the smtp notification backend.
type SMTP struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
}

// Kafka holds the broker settings for the kafka notification backend.
type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Redis holds the settings for the Redis-backed pair lock.
// An empty Addr selects the in-process lock instead.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	LockTTL  int    `mapstructure:"lock_ttl"` // seconds
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"` // optional rotating log file
}

// Server holds the configuration for the status HTTP server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("cexio.rate_limit", 10) // requests per second
	viper.SetDefault("cexio.rate_limit_burst", 5)
	viper.SetDefault("trading.auto_cancel_minutes", 10)
	viper.SetDefault("trading.tick_interval", 60)
	viper.SetDefault("trading.reconcile_interval", 60)
	viper.SetDefault("trading.display_timezone", "America/New_York")
	viper.SetDefault("report.hour", 8)
	viper.SetDefault("notify.backend", "log")
	viper.SetDefault("redis.lock_ttl", 120)
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	err = config.Validate()
	return
}

// Validate checks the invariants the trading logic relies on.
func (c *Config) Validate() error {
	if !models.Pair(c.Trading.Pair).Valid() {
		return fmt.Errorf("unsupported trading pair %q", c.Trading.Pair)
	}
	for name, v := range map[string]float64{
		"buy_threshold":            c.Trading.BuyThreshold,
		"sell_threshold":           c.Trading.SellThreshold,
		"upswing_buy_threshold":    c.Trading.UpswingBuyThreshold,
		"downswing_sell_threshold": c.Trading.DownswingSellThreshold,
		"fee":                      c.Trading.Fee,
	} {
		if v < 0 {
			return fmt.Errorf("trading.%s must not be negative, got %v", name, v)
		}
	}
	if c.Trading.AutoCancelMinutes <= 0 {
		return fmt.Errorf("trading.auto_cancel_minutes must be positive, got %d", c.Trading.AutoCancelMinutes)
	}
	return nil
}
