// Package config loads server settings from defaults, an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/harrylevesque/photobooth/internal/utils"
)

const EnvPrefix = "PHOTOBOOTH"

type Config struct {
	Debug   bool   `mapstructure:"debug"`
	Station string `mapstructure:"station"`

	Server struct {
		Addr      string `mapstructure:"addr"`
		Port      string `mapstructure:"port"`
		BaseURL   string `mapstructure:"base_url"`
		PublicDir string `mapstructure:"public_dir"`
	} `mapstructure:"server"`

	Admin struct {
		Token     string `mapstructure:"token"`
		TokenHash string `mapstructure:"token_hash"`
	} `mapstructure:"admin"`

	Storage struct {
		Backend  string `mapstructure:"backend"`
		Dir      string `mapstructure:"dir"`
		BoltPath string `mapstructure:"bolt_path"`
	} `mapstructure:"storage"`

	Limits struct {
		OverlayBytes int64 `mapstructure:"overlay_bytes"`
		PhotoBytes   int64 `mapstructure:"photo_bytes"`
	} `mapstructure:"limits"`

	Capture struct {
		Width  int `mapstructure:"width"`
		Height int `mapstructure:"height"`
	} `mapstructure:"capture"`

	CORS struct {
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"cors"`

	TLS struct {
		Enabled         bool     `mapstructure:"enabled"`
		CertDir         string   `mapstructure:"cert_dir"`
		Hosts           []string `mapstructure:"hosts"`
		AutocertDomains []string `mapstructure:"autocert_domains"`
	} `mapstructure:"tls"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Sentry struct {
		DSN         string `mapstructure:"dsn"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"sentry"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("station", "")
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.port", "")
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.public_dir", "public")
	v.SetDefault("admin.token", "")
	v.SetDefault("admin.token_hash", "")
	v.SetDefault("storage.backend", "dir")
	v.SetDefault("storage.dir", "uploads")
	v.SetDefault("storage.bolt_path", "uploads/booth.db")
	v.SetDefault("limits.overlay_bytes", 10<<20)
	v.SetDefault("limits.photo_bytes", 15<<20)
	v.SetDefault("capture.width", 1080)
	v.SetDefault("capture.height", 1440)
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.cert_dir", "certs")
	v.SetDefault("tls.hosts", []string{"localhost"})
	v.SetDefault("tls.autocert_domains", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
}

// Load reads configuration. With an empty path, config.yaml is looked up in
// the working directory and /etc/photobooth and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// bare names used by existing deployments
	for key, legacy := range map[string]string{
		"server.port":     "PORT",
		"server.base_url": "BASE_URL",
		"admin.token":     "ADMIN_TOKEN",
	} {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/photobooth")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Server.Port != "" {
		cfg.Server.Addr = ":" + cfg.Server.Port
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "dir", "bolt", "memory":
	default:
		return fmt.Errorf("storage.backend must be dir, bolt or memory, got %q", c.Storage.Backend)
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		return fmt.Errorf("capture size must be positive, got %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if c.Limits.OverlayBytes <= 0 || c.Limits.PhotoBytes <= 0 {
		return errors.New("limits must be positive")
	}
	return nil
}

func (c *Config) resolvePaths() error {
	for _, p := range []*string{&c.Storage.Dir, &c.Storage.BoltPath, &c.TLS.CertDir} {
		abs, err := utils.ExpandPath(*p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}
	if c.Server.PublicDir != "" {
		abs, err := utils.ExpandPath(c.Server.PublicDir)
		if err != nil {
			return err
		}
		c.Server.PublicDir = abs
	}
	return nil
}
