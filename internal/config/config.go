// Package config resolves server settings with the precedence
// defaults < config file < environment < command-line flags. The flag layer
// lives in the CLI; this package covers the first three.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigFile points at an optional YAML config file.
const EnvConfigFile = "WHISPER_API_CONFIG_FILE"

const (
	DefaultListen         = ":8000"
	DefaultWorkers        = 2
	DefaultRequestTimeout = 5 * time.Minute
	DefaultMaxUploadBytes = 512 << 20
	DefaultReadinessGrace = 5 * time.Second
	DefaultShutdownGrace  = 30 * time.Second
	DefaultSilenceDBFS    = -65
)

type Config struct {
	Listen string `yaml:"listen"`

	Workers int `yaml:"workers"`
	// QueueSize < 0 means "derive": twice the worker count.
	QueueSize      int           `yaml:"queue_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Model        string `yaml:"model"`
	ModelDir     string `yaml:"model_dir"`
	AutoDownload bool   `yaml:"auto_download"`
	Language     string `yaml:"language"`

	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	ReadinessGrace time.Duration `yaml:"readiness_grace"`
	// StallAfter == 0 means "derive": request timeout plus 30 seconds.
	StallAfter    time.Duration `yaml:"stall_after"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	SilenceGate          bool    `yaml:"silence_gate"`
	SilenceThresholdDBFS float64 `yaml:"silence_threshold_dbfs"`

	Verbose  bool `yaml:"verbose"`
	JSONLogs bool `yaml:"json_logs"`
}

func Default() Config {
	return Config{
		Listen:               DefaultListen,
		Workers:              DefaultWorkers,
		QueueSize:            -1,
		RequestTimeout:       DefaultRequestTimeout,
		Model:                "base",
		AutoDownload:         true,
		Language:             "auto",
		MaxUploadBytes:       DefaultMaxUploadBytes,
		ReadinessGrace:       DefaultReadinessGrace,
		ShutdownGrace:        DefaultShutdownGrace,
		SilenceGate:          true,
		SilenceThresholdDBFS: DefaultSilenceDBFS,
	}
}

// Load builds a Config from defaults, the optional YAML file named by
// WHISPER_API_CONFIG_FILE, and WHISPER_API_* environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv(EnvConfigFile)); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnv() error {
	var errs []error

	setString(&c.Listen, "WHISPER_API_LISTEN")
	setInt(&c.Workers, "WHISPER_API_WORKERS", &errs)
	setInt(&c.QueueSize, "WHISPER_API_QUEUE_SIZE", &errs)
	setDuration(&c.RequestTimeout, "WHISPER_API_REQUEST_TIMEOUT", &errs)
	setString(&c.Model, "WHISPER_API_MODEL")
	setString(&c.ModelDir, "WHISPER_API_MODEL_DIR")
	setBool(&c.AutoDownload, "WHISPER_API_AUTO_DOWNLOAD", &errs)
	setString(&c.Language, "WHISPER_API_LANGUAGE")
	setInt64(&c.MaxUploadBytes, "WHISPER_API_MAX_UPLOAD_BYTES", &errs)
	setDuration(&c.ReadinessGrace, "WHISPER_API_READINESS_GRACE", &errs)
	setDuration(&c.StallAfter, "WHISPER_API_STALL_AFTER", &errs)
	setDuration(&c.ShutdownGrace, "WHISPER_API_SHUTDOWN_GRACE", &errs)
	setBool(&c.SilenceGate, "WHISPER_API_SILENCE_GATE", &errs)
	setFloat(&c.SilenceThresholdDBFS, "WHISPER_API_SILENCE_THRESHOLD_DBFS", &errs)
	setBool(&c.Verbose, "WHISPER_API_VERBOSE", &errs)
	setBool(&c.JSONLogs, "WHISPER_API_JSON_LOGS", &errs)

	return errors.Join(errs...)
}

// Finalize resolves derived defaults and checks bounds. Call it after the
// flag layer has had its say.
func (c *Config) Finalize() error {
	if c.QueueSize < 0 {
		c.QueueSize = 2 * c.Workers
	}
	if c.StallAfter == 0 {
		c.StallAfter = c.RequestTimeout + 30*time.Second
	}

	switch {
	case strings.TrimSpace(c.Listen) == "":
		return errors.New("listen address must not be empty")
	case c.Workers < 1:
		return fmt.Errorf("worker count must be at least 1, got %d", c.Workers)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadBytes)
	case c.ReadinessGrace < 0:
		return fmt.Errorf("readiness grace must not be negative, got %s", c.ReadinessGrace)
	case c.ShutdownGrace < 0:
		return fmt.Errorf("shutdown grace must not be negative, got %s", c.ShutdownGrace)
	}

	return nil
}

func setString(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(value)
	}
}

func setInt(dst *int, key string, errs *[]error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return
	}
	*dst = parsed
}

func setInt64(dst *int64, key string, errs *[]error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return
	}
	*dst = parsed
}

func setBool(dst *bool, key string, errs *[]error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, value))
		return
	}
	*dst = parsed
}

func setFloat(dst *float64, key string, errs *[]error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid number %q", key, value))
		return
	}
	*dst = parsed
}

func setDuration(dst *time.Duration, key string, errs *[]error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	trimmed := strings.TrimSpace(value)
	parsed, err := time.ParseDuration(trimmed)
	if err != nil {
		// Bare numbers are taken as seconds, matching typical container env
		// values like REQUEST_TIMEOUT=300.
		if secs, convErr := strconv.Atoi(trimmed); convErr == nil {
			*dst = time.Duration(secs) * time.Second
			return
		}
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return
	}
	*dst = parsed
}
