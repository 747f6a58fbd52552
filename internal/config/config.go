// Package config provides configuration management for frontpage using Viper
// for loading from files, environment variables and command-line flags.
//
// The configuration file is .frontpage.yml; every key can be overridden with
// a FRONTPAGE_ prefixed environment variable such as FRONTPAGE_SERVER_PORT.
// Settings cover the HTTP server, the site (setup tree, public directory,
// locale), the page cache and generation locks, security headers and logging.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Backend names for the page cache and generation locks.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Site     SiteConfig     `mapstructure:"site"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Lock     LockConfig     `mapstructure:"lock"`
	Security SecurityConfig `mapstructure:"security"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SiteConfig struct {
	SetupFile    string `mapstructure:"setup_file"`
	PublicDir    string `mapstructure:"public_dir"`
	TempDir      string `mapstructure:"temp_dir"`
	Locale       string `mapstructure:"locale"`
	AbsRefPrefix string `mapstructure:"abs_ref_prefix"`
	Watch        bool   `mapstructure:"watch"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	MaxSize int64         `mapstructure:"max_size"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type LockConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SecurityConfig struct {
	EnableNonce  bool   `mapstructure:"enable_nonce"`
	CSPReportURI string `mapstructure:"csp_report_uri"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v, applies defaults and validates the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config, err := Decode(v)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Decode unmarshals v and applies defaults without validating. Use Validate
// to collect every problem of the result.
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	applyDefaults(v, &config)
	return &config, nil
}

func applyDefaults(v *viper.Viper, config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if !v.IsSet("server.port") {
		config.Server.Port = 8080
	}
	if config.Server.Environment == "" {
		config.Server.Environment = "development"
	}
	if config.Server.ShutdownTimeout <= 0 {
		config.Server.ShutdownTimeout = 10 * time.Second
	}

	if config.Site.SetupFile == "" {
		config.Site.SetupFile = "setup.yml"
	}
	if config.Site.PublicDir == "" {
		config.Site.PublicDir = "public"
	}
	if config.Site.TempDir == "" {
		config.Site.TempDir = "_assets"
	}
	if config.Site.Locale == "" {
		config.Site.Locale = "en-US"
	}

	if config.Cache.Backend == "" {
		config.Cache.Backend = BackendMemory
	}
	if config.Cache.MaxSize <= 0 {
		config.Cache.MaxSize = 64 << 20
	}
	if config.Cache.TTL <= 0 {
		config.Cache.TTL = 24 * time.Hour
	}
	if config.Cache.Redis.Prefix == "" {
		config.Cache.Redis.Prefix = "frontpage:page:"
	}

	if config.Lock.Backend == "" {
		config.Lock.Backend = config.Cache.Backend
	}
	if config.Lock.TTL <= 0 {
		config.Lock.TTL = 30 * time.Second
	}
	if config.Lock.Timeout <= 0 {
		config.Lock.Timeout = 30 * time.Second
	}

	// Nonces are on unless explicitly disabled.
	if !v.IsSet("security.enable_nonce") {
		config.Security.EnableNonce = true
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// Address returns the listen address of the HTTP server.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction reports whether the server runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}
