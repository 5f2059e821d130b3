package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	DB         DBConfig         `mapstructure:"db"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Log        LogConfig        `mapstructure:"log"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Reports    ReportsConfig    `mapstructure:"reports"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type DBConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// DSN returns the PostgreSQL keyword/value connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// URL returns the PostgreSQL connection URL used by golang-migrate.
func (c DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type PipelineConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// LogConfig selects the zap level and encoder. An empty Encoding picks
// JSON in production and console elsewhere.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// SettlementConfig bounds how long a single settlement transaction may run.
type SettlementConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ReportsConfig controls scheduled report generation and retention.
type ReportsConfig struct {
	CronMode      string `mapstructure:"cron_mode"`
	RetentionDays int    `mapstructure:"retention_days"`
	Currency      string `mapstructure:"currency"`
}

var appConfig *Config

// Load loads configuration from the environment, an optional .env file and
// an optional YAML file named by CONFIG_FILE.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if cfg.Settlement.Timeout <= 0 {
		log.Printf("Warning: invalid settlement timeout %s, falling back to 10s\n", cfg.Settlement.Timeout)
		cfg.Settlement.Timeout = 10 * time.Second
	}
	if cfg.Reports.RetentionDays <= 0 {
		cfg.Reports.RetentionDays = 90
	}
	cfg.Log.Encoding = strings.ToLower(strings.TrimSpace(cfg.Log.Encoding))
	if cfg.Log.Encoding != "" && cfg.Log.Encoding != "json" && cfg.Log.Encoding != "console" {
		log.Printf("Warning: unknown log encoding %q, using the environment default\n", cfg.Log.Encoding)
		cfg.Log.Encoding = ""
	}
	cfg.Reports.CronMode = strings.ToLower(strings.TrimSpace(cfg.Reports.CronMode))
	cfg.Reports.Currency = strings.ToUpper(cfg.Reports.Currency)

	appConfig = &cfg
	return appConfig, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "fundledger")
	v.SetDefault("db.password", "fundledger")
	v.SetDefault("db.name", "fundledger")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 100)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", "1h")
	v.SetDefault("db.migrations_path", "file://migrations")

	v.SetDefault("auth.jwt_secret", "fallback-secret-key-for-dev-only")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("pipeline.api_key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "")

	v.SetDefault("settlement.timeout", "10s")

	v.SetDefault("reports.cron_mode", "2-minute")
	v.SetDefault("reports.retention_days", 90)
	v.SetDefault("reports.currency", "USD")
}
