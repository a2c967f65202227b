// Package config loads DeepMSI settings from files, .env and DEEPMSI_* variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DEEPMSI_PREDICT_URL.
const EnvPrefix = "DEEPMSI"

// Config is the effective configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Predict PredictConfig `mapstructure:"predict"`
	Export  ExportConfig  `mapstructure:"export"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type PredictConfig struct {
	URL             string        `mapstructure:"url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type ExportConfig struct {
	Strategy          string  `mapstructure:"strategy"`
	DeviceScaleFactor float64 `mapstructure:"device_scale_factor"`
	ViewportWidth     int     `mapstructure:"viewport_width"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")

	v.SetDefault("predict.url", "http://localhost:5000/api/predict")
	v.SetDefault("predict.timeout", "60s")
	v.SetDefault("predict.rate_limit", 5)
	v.SetDefault("predict.breaker_failures", 5)
	v.SetDefault("predict.breaker_timeout", "30s")

	v.SetDefault("export.strategy", "vector")
	v.SetDefault("export.device_scale_factor", 2)
	v.SetDefault("export.viewport_width", 1024)

	v.SetDefault("upload.max_bytes", 20<<20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads configuration. An empty path searches deepmsi.yaml in the
// usual locations; a missing file there is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("deepmsi")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/deepmsi/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	u, err := url.Parse(c.Predict.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid predict url: %q", c.Predict.URL)
	}
	if c.Predict.Timeout <= 0 {
		return fmt.Errorf("predict timeout must be positive")
	}
	if c.Predict.RateLimit < 0 {
		return fmt.Errorf("predict rate limit must not be negative")
	}

	switch strings.ToLower(c.Export.Strategy) {
	case "snapshot", "vector":
	default:
		return fmt.Errorf("invalid export strategy: %s", c.Export.Strategy)
	}
	if c.Export.DeviceScaleFactor <= 0 {
		return fmt.Errorf("invalid device scale factor: %v", c.Export.DeviceScaleFactor)
	}
	if c.Export.ViewportWidth <= 0 {
		return fmt.Errorf("invalid viewport width: %d", c.Export.ViewportWidth)
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// WriteYAML dumps the configuration with durations in their string form.
func (c *Config) WriteYAML(w io.Writer) error {
	doc := map[string]any{
		"server": map[string]any{
			"host":          c.Server.Host,
			"port":          c.Server.Port,
			"read_timeout":  c.Server.ReadTimeout.String(),
			"write_timeout": c.Server.WriteTimeout.String(),
			"idle_timeout":  c.Server.IdleTimeout.String(),
		},
		"predict": map[string]any{
			"url":              c.Predict.URL,
			"timeout":          c.Predict.Timeout.String(),
			"rate_limit":       c.Predict.RateLimit,
			"breaker_failures": c.Predict.BreakerFailures,
			"breaker_timeout":  c.Predict.BreakerTimeout.String(),
		},
		"export": map[string]any{
			"strategy":            c.Export.Strategy,
			"device_scale_factor": c.Export.DeviceScaleFactor,
			"viewport_width":      c.Export.ViewportWidth,
		},
		"upload": map[string]any{
			"max_bytes": c.Upload.MaxBytes,
		},
		"logging": map[string]any{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
		},
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
