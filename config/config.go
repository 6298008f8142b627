package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	core "tabpool-backend/core/payment_job"
)

// EnvPrefix prefixes every environment override, e.g. TABPOOL_STORE_DRIVER.
const EnvPrefix = "TABPOOL"

// Config is the full runtime configuration shared by the CLI, the HTTP
// server and the MCP server.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Engine EngineConfig `mapstructure:"engine"`
	Log    LogConfig    `mapstructure:"log"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Faucet FaucetConfig `mapstructure:"faucet"`
	QR     QRConfig     `mapstructure:"qr"`
	Cache  CacheConfig  `mapstructure:"cache"`
	// Wallet is the caller identity used by the CLI and the MCP server.
	Wallet string `mapstructure:"wallet"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

type StoreConfig struct {
	Driver     string `mapstructure:"driver"` // memory | postgres | sqlite
	PGDSN      string `mapstructure:"pg_dsn"`
	SQLitePath string `mapstructure:"sqlite_path"`
	Seed       bool   `mapstructure:"seed"`
}

type EngineConfig struct {
	AutoDistribute bool `mapstructure:"auto_distribute"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// APIKeyBinding ties an API key to the wallet it acts as.
type APIKeyBinding struct {
	Key    string `mapstructure:"key"`
	Wallet string `mapstructure:"wallet"`
	Label  string `mapstructure:"label"`
}

type AuthConfig struct {
	Required bool            `mapstructure:"required"`
	Keys     []APIKeyBinding `mapstructure:"keys"`
	// APIKey and APIWallet add one binding from the environment.
	APIKey    string `mapstructure:"api_key"`
	APIWallet string `mapstructure:"api_wallet"`
	PGDSN     string `mapstructure:"pg_dsn"`
}

// Bindings returns the configured keys plus the environment binding, if any.
func (a AuthConfig) Bindings() []APIKeyBinding {
	out := append([]APIKeyBinding(nil), a.Keys...)
	if a.APIKey != "" {
		out = append(out, APIKeyBinding{Key: a.APIKey, Wallet: a.APIWallet, Label: "env"})
	}
	return out
}

type FaucetConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type QRConfig struct {
	Scheme   string `mapstructure:"scheme"`
	Label    string `mapstructure:"label"`
	Decimals int    `mapstructure:"decimals"`
	Size     int    `mapstructure:"size"`
}

type CacheConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3100")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.pg_dsn", "")
	v.SetDefault("store.sqlite_path", "tabpool.db")
	v.SetDefault("store.seed", true)

	v.SetDefault("engine.auto_distribute", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("auth.required", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.api_wallet", "")
	v.SetDefault("auth.pg_dsn", "")

	v.SetDefault("faucet.enabled", true)

	v.SetDefault("qr.scheme", "solana")
	v.SetDefault("qr.label", "Tab Payment")
	v.SetDefault("qr.decimals", core.DefaultDecimals)
	v.SetDefault("qr.size", 256)

	v.SetDefault("cache.ttl", 15*time.Second)
	v.SetDefault("cache.max_size", 1024)

	v.SetDefault("wallet", "")
}

// NewViper returns a viper instance wired for defaults and environment
// overrides. A non-empty configFile is read on top of the defaults;
// otherwise tabpool.{yaml,toml} is looked up in the working directory
// and $HOME/.tabpool.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
		return v, nil
	}

	v.SetConfigName("tabpool")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.tabpool")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}
	return v, nil
}

// Load reads configuration from defaults, an optional file and the environment.
func Load(configFile string) (*Config, error) {
	v, err := NewViper(configFile)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes and validates a prepared viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "postgres", "pg", "sqlite", "sqlite3":
	default:
		return errors.Newf("store.driver %q is not one of memory, postgres, sqlite", c.Store.Driver)
	}
	if (c.Store.Driver == "postgres" || c.Store.Driver == "pg") && c.Store.PGDSN == "" {
		return errors.New("store.pg_dsn is required for the postgres driver")
	}
	if c.QR.Decimals < 0 || c.QR.Decimals > 18 {
		return errors.Newf("qr.decimals must be within 0..18, got %d", c.QR.Decimals)
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server.port is required")
	}
	if c.Wallet != "" {
		if _, err := core.ParseIdentity(c.Wallet); err != nil {
			return errors.Wrap(err, "wallet")
		}
	}
	for _, b := range c.Auth.Bindings() {
		if b.Key == "" {
			return errors.New("auth key binding with empty key")
		}
		if _, err := core.ParseIdentity(b.Wallet); err != nil {
			return errors.Wrapf(err, "auth key %q wallet", b.Label)
		}
	}
	return nil
}

// WalletIdentity returns the configured caller identity.
func (c *Config) WalletIdentity() (core.Identity, error) {
	if c.Wallet == "" {
		return "", errors.Wrap(core.ErrInvalidInput, "no wallet configured; pass --wallet or set TABPOOL_WALLET")
	}
	return core.ParseIdentity(c.Wallet)
}
