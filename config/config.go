package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	PhaseBeforeRouting = "before-routing"
	PhaseAfterRouting  = "after-routing"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
	StaticDir   string `mapstructure:"static_dir"`
}

type RewriteConfig struct {
	Source      string `mapstructure:"source"`
	Destination string `mapstructure:"destination"`
	Phase       string `mapstructure:"phase"`
}

type UpstreamHealthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
	Path     string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Rewrites       []RewriteConfig      `mapstructure:"rewrites"`
	UpstreamHealth UpstreamHealthConfig `mapstructure:"upstream_health"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":3000")
	viper.SetDefault("server.static_dir", "./public")
	viper.SetDefault("upstream_health.enabled", true)
	viper.SetDefault("upstream_health.interval", "5s")
	viper.SetDefault("upstream_health.path", "/api/health")
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("metrics.buffer_size", 1024)
	viper.SetDefault("rewrites", []map[string]interface{}{
		{
			"source":      "/api/:path*",
			"destination": "http://localhost:8000/api/:path*",
			"phase":       PhaseBeforeRouting,
		},
	})

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Info("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.StaticDir,
						validation.Required,
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.UpstreamHealth,
			validation.By(func(value interface{}) error {
				hc, ok := value.(UpstreamHealthConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an UpstreamHealthConfig")
				}
				if !hc.Enabled {
					return nil
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.Path,
						validation.Required,
						validation.By(validateRootedPath),
					),
				)
			}),
		),
		validation.Field(&c.Rewrites,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateRewriteConfig)),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateRootedPath(value interface{}) error {
	path, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if !strings.HasPrefix(path, "/") {
		return validation.NewError("validation_invalid_path", "path must start with '/'")
	}

	return nil
}

// validateRewriteConfig checks the declarative shape of a rewrite rule.
// Pattern compilation (capture syntax, capture-name agreement between source
// and destination) happens when the rule table is built; both are startup
// faults, never runtime ones.
func validateRewriteConfig(value interface{}) error {
	rule, ok := value.(RewriteConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a RewriteConfig")
	}

	if !strings.HasPrefix(rule.Source, "/") {
		return validation.NewError("validation_invalid_source", "source must start with '/'")
	}

	if rule.Destination == "" {
		return validation.NewError("validation_empty_destination", "destination cannot be empty")
	}

	parsedURL, err := url.Parse(rule.Destination)
	if err != nil {
		return validation.NewError("validation_invalid_destination", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "destination must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "destination must have a host")
	}

	if rule.Phase != "" && rule.Phase != PhaseBeforeRouting && rule.Phase != PhaseAfterRouting {
		return validation.NewError("validation_invalid_phase", "phase must be before-routing or after-routing")
	}

	return nil
}
