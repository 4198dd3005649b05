package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"market_pulse/internal/candles"
	"market_pulse/internal/signal"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDir         = "configs"
	defaultConfigFile = "values_local.yaml"
)

// Config ...
type Config struct {
	Service   ServiceConfig   `mapstructure:"service" yaml:"service"`
	Symbols   []string        `mapstructure:"symbols" yaml:"symbols"`
	Feeds     FeedsConfig     `mapstructure:"feeds" yaml:"feeds"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap" yaml:"bootstrap"`
	DB        string          `mapstructure:"db_dsn" yaml:"db_dsn"`
	Telegram  TelegramConfig  `mapstructure:"telegram" yaml:"telegram"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServiceConfig struct {
	Name       string `mapstructure:"name" yaml:"name"`
	Host       string `mapstructure:"host" yaml:"host"`
	PublicPort int    `mapstructure:"public_port" yaml:"public_port"`
	AdminPort  int    `mapstructure:"admin_port" yaml:"admin_port"`
	StaticDir  string `mapstructure:"static_dir" yaml:"static_dir"`
}

type FeedsConfig struct {
	SpotURL        string        `mapstructure:"spot_url" yaml:"spot_url"`
	FuturesURL     string        `mapstructure:"futures_url" yaml:"futures_url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	DepthLevels    int           `mapstructure:"depth_levels" yaml:"depth_levels"`
	DepthSpeed     time.Duration `mapstructure:"depth_speed" yaml:"depth_speed"`
	KlineInterval  string        `mapstructure:"kline_interval" yaml:"kline_interval"`
}

type EngineConfig struct {
	Heartbeat          time.Duration          `mapstructure:"heartbeat" yaml:"heartbeat"`
	MinPublishInterval time.Duration          `mapstructure:"min_publish_interval" yaml:"min_publish_interval"`
	Timeframe          string                 `mapstructure:"timeframe" yaml:"timeframe"`
	ATRBands           map[string]signal.Band `mapstructure:"atr_bands" yaml:"atr_bands"`
}

type BootstrapConfig struct {
	Source         string        `mapstructure:"source" yaml:"source"` // binance | postgres | none
	Limit          int           `mapstructure:"limit" yaml:"limit"`
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`
	RateInterval   time.Duration `mapstructure:"rate_interval" yaml:"rate_interval"`
	BinanceBaseURL string        `mapstructure:"binance_base_url" yaml:"binance_base_url"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token" yaml:"token"`
	ChatID int64  `mapstructure:"chat_id" yaml:"chat_id"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Channel  string `mapstructure:"channel" yaml:"channel"`
}

type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	File        string `mapstructure:"file" yaml:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// MaxBootstrapLimit: больше свечей начальной загрузки не берём.
const MaxBootstrapLimit = 100

const (
	BootstrapBinance  = "binance"
	BootstrapPostgres = "postgres"
	BootstrapNone     = "none"
)

var DefaultSymbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "BNBUSDT", "DOGEUSDT"}

// NewConfig читает configs/$CONFIG_FILE (по умолчанию values_local.yaml).
// Отсутствие файла не ошибка: работают дефолты и env.
func NewConfig() (*Config, error) {
	_ = godotenv.Load() // .env опционален

	name := os.Getenv(configFilePathENV)
	if name == "" {
		name = defaultConfigFile
	}
	return Load(configDir + "/" + name)
}

// Load собирает конфиг из файла path, env и дефолтов.
func Load(path string) (*Config, error) {
	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	return Decode(v)
}

// NewViper: viper с дефолтами и биндингом env (service.public_port -> SERVICE_PUBLIC_PORT).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("service.name", "market-pulse")
	v.SetDefault("service.host", "0.0.0.0")
	v.SetDefault("service.public_port", 5000)
	v.SetDefault("service.admin_port", 8081)
	v.SetDefault("service.static_dir", "public")

	v.SetDefault("symbols", DefaultSymbols)

	v.SetDefault("feeds.spot_url", "wss://stream.binance.com:9443/stream")
	v.SetDefault("feeds.futures_url", "wss://fstream.binance.com/stream")
	v.SetDefault("feeds.reconnect_delay", 5*time.Second)
	v.SetDefault("feeds.depth_levels", 20)
	v.SetDefault("feeds.depth_speed", 100*time.Millisecond)
	v.SetDefault("feeds.kline_interval", candles.Interval)

	v.SetDefault("engine.heartbeat", 2*time.Second)
	v.SetDefault("engine.min_publish_interval", 200*time.Millisecond)
	v.SetDefault("engine.timeframe", "15m")
	v.SetDefault("engine.atr_bands", map[string]any{
		"BTCUSDT":  map[string]any{"low": 50.0, "high": 400.0},
		"ETHUSDT":  map[string]any{"low": 3.0, "high": 30.0},
		"SOLUSDT":  map[string]any{"low": 0.15, "high": 1.5},
		"XRPUSDT":  map[string]any{"low": 0.002, "high": 0.02},
		"BNBUSDT":  map[string]any{"low": 0.5, "high": 5.0},
		"DOGEUSDT": map[string]any{"low": 0.0003, "high": 0.003},
	})

	v.SetDefault("bootstrap.source", BootstrapBinance)
	v.SetDefault("bootstrap.limit", 100)
	v.SetDefault("bootstrap.concurrency", 4)
	v.SetDefault("bootstrap.rate_interval", 250*time.Millisecond)
	v.SetDefault("bootstrap.binance_base_url", "")

	v.SetDefault("db_dsn", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "market-pulse")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.development", false)

	// старые имена переменных
	_ = v.BindEnv("service.public_port", "SERVICE_PUBLIC_PORT", "PORT")
	_ = v.BindEnv("db_dsn", "DB_DSN", "DATABASE_DSN")
	_ = v.BindEnv("telegram.token", "TELEGRAM_TOKEN")
	return v
}

func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// viper приводит ключи map к нижнему регистру, символы держим в верхнем.
func (c *Config) normalize() {
	for i, s := range c.Symbols {
		c.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	bands := make(map[string]signal.Band, len(c.Engine.ATRBands))
	for k, b := range c.Engine.ATRBands {
		bands[strings.ToUpper(k)] = b
	}
	c.Engine.ATRBands = bands
	c.Bootstrap.Source = strings.ToLower(c.Bootstrap.Source)
}

func (c *Config) Validate() error {
	var err error
	if len(c.Symbols) == 0 {
		err = multierr.Append(err, errors.New("symbols: at least one symbol required"))
	}
	for _, s := range c.Symbols {
		if s == "" {
			err = multierr.Append(err, errors.New("symbols: empty symbol"))
		}
	}
	if c.Service.PublicPort <= 0 {
		err = multierr.Append(err, errors.Errorf("service.public_port: invalid %d", c.Service.PublicPort))
	}
	if c.Service.AdminPort <= 0 {
		err = multierr.Append(err, errors.Errorf("service.admin_port: invalid %d", c.Service.AdminPort))
	}
	if c.Feeds.ReconnectDelay <= 0 {
		err = multierr.Append(err, errors.New("feeds.reconnect_delay: must be positive"))
	}
	// kline перезаписывает 15-минутную корзину целиком
	if c.Feeds.KlineInterval != candles.Interval {
		err = multierr.Append(err, errors.Errorf("feeds.kline_interval: must be %s, got %q", candles.Interval, c.Feeds.KlineInterval))
	}
	if c.Engine.Heartbeat <= 0 {
		err = multierr.Append(err, errors.New("engine.heartbeat: must be positive"))
	}
	for sym, b := range c.Engine.ATRBands {
		if b.Low < 0 || b.High < b.Low {
			err = multierr.Append(err, errors.Errorf("engine.atr_bands.%s: bad band [%v, %v]", sym, b.Low, b.High))
		}
	}
	switch c.Bootstrap.Source {
	case BootstrapBinance, BootstrapNone:
	case BootstrapPostgres:
		if c.DB == "" {
			err = multierr.Append(err, errors.New("db_dsn: required for postgres bootstrap"))
		}
	default:
		err = multierr.Append(err, errors.Errorf("bootstrap.source: unknown %q", c.Bootstrap.Source))
	}
	if c.Bootstrap.Limit <= 0 || c.Bootstrap.Limit > MaxBootstrapLimit {
		err = multierr.Append(err, errors.Errorf("bootstrap.limit: must be in [1, %d], got %d", MaxBootstrapLimit, c.Bootstrap.Limit))
	}
	if c.Bootstrap.Concurrency <= 0 {
		err = multierr.Append(err, errors.New("bootstrap.concurrency: must be positive"))
	}
	return err
}
