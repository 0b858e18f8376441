package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the gateway. It is loaded once at
// startup and treated as immutable afterwards; request-scoped code receives
// it by reference through constructors, never via package globals.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

type ServerConfig struct {
	Host     string `json:"host" yaml:"host" env:"CLOVAGATE_SERVER_HOST"`
	Port     int    `json:"port" yaml:"port" env:"CLOVAGATE_SERVER_PORT"`
	LogLevel string `json:"logLevel" yaml:"logLevel" env:"CLOVAGATE_LOG_LEVEL"`

	// TrustProxy selects the client IP placed in the chatbot envelope: the
	// first X-Forwarded-For hop when true, the socket address otherwise.
	TrustProxy bool `json:"trustProxy" yaml:"trustProxy" env:"CLOVAGATE_TRUST_PROXY"`
}

type ProviderConfig struct {
	// Endpoint is the chatbot builder's invoke URL.
	Endpoint string `json:"endpoint" yaml:"endpoint" env:"CLOVAGATE_PROVIDER_ENDPOINT"`

	// SecretKey signs every outbound request body. Keep it out of config
	// files: reference it as ${CLOVAGATE_PROVIDER_SECRET_KEY} or set the
	// environment variable directly.
	SecretKey string `json:"secretKey,omitempty" yaml:"secretKey,omitempty" env:"CLOVAGATE_PROVIDER_SECRET_KEY"`

	SignatureHeader string `json:"signatureHeader" yaml:"signatureHeader" env:"CLOVAGATE_PROVIDER_SIGNATURE_HEADER"`
	TimeoutSeconds  int    `json:"timeoutSeconds" yaml:"timeoutSeconds" env:"CLOVAGATE_PROVIDER_TIMEOUT_SECONDS"`
}

// Timeout returns the outbound request timeout as a duration.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" env:"CLOVAGATE_METRICS_ENABLED"`
}

// DefaultConfigDir returns the default config directory (~/.clovagate).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clovagate"
	}
	return filepath.Join(home, ".clovagate")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads a config file (JSON, or YAML when the path ends in .yaml/.yml),
// expands ${VAR} references, applies CLOVAGATE_* environment overrides, and
// validates the result. A .env file in the working directory is loaded first
// so that secrets can live there during development.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	path = ExpandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a config from defaults plus environment variables only, for
// deployments that run without a config file.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Save writes the config as indented JSON, creating the directory if needed.
// Secrets marked omitempty are left out of the file.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values. Missing provider
// credentials fail here, at startup, rather than on the first request.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	switch cfg.Server.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "server.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Provider.Endpoint == "" {
		errs = append(errs, "provider.endpoint is required (or set CLOVAGATE_PROVIDER_ENDPOINT)")
	}
	if cfg.Provider.SecretKey == "" {
		errs = append(errs, "provider.secretKey is required (or set CLOVAGATE_PROVIDER_SECRET_KEY)")
	}
	if cfg.Provider.SignatureHeader == "" {
		errs = append(errs, "provider.signatureHeader must not be empty")
	}
	if cfg.Provider.TimeoutSeconds < 1 || cfg.Provider.TimeoutSeconds > 300 {
		errs = append(errs, "provider.timeoutSeconds must be between 1 and 300")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
