// Package aliasing provides dimension alias resolution for the load engine.
//
// Personnel exports spell the same technology, language or clearance many ways
// ("k8s", "Kubernetes", "Golang", "Go 1.22"). Normalization folds case and whitespace;
// this package maps the remaining spelling variants to one canonical display name
// before the dimension is resolved.
package aliasing

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/correlator-io/roster/internal/config"
)

type (
	// Config holds dimension alias configuration loaded from .roster.yaml.
	//
	// Example:
	//
	//	dimension_aliases:
	//	  technology:
	//	    k8s: Kubernetes
	//	    golang: Go
	//	dimension_patterns:
	//	  - kind: technology
	//	    pattern: "Java {version}"
	//	    canonical: "Java"
	Config struct {
		// DimensionAliases maps dimension kind → alias → canonical name.
		//nolint:tagliatelle // snake_case is intentional for YAML config files
		DimensionAliases map[string]map[string]string `yaml:"dimension_aliases"`

		// DimensionPatterns are evaluated in order after exact aliases; first match wins.
		//nolint:tagliatelle // snake_case is intentional for YAML config files
		DimensionPatterns []DimensionPattern `yaml:"dimension_patterns"`
	}

	// DimensionPattern rewrites names matching Pattern to Canonical for one dimension kind.
	DimensionPattern struct {
		Kind      string `yaml:"kind"`
		Pattern   string `yaml:"pattern"`
		Canonical string `yaml:"canonical"`
	}
)

// DefaultConfigPath is the default location for the roster configuration file.
const DefaultConfigPath = ".roster.yaml"

// ConfigPathEnvVar is the environment variable name for custom config path.
const ConfigPathEnvVar = "ROSTER_ALIAS_CONFIG"

func emptyConfig() *Config {
	return &Config{
		DimensionAliases:  make(map[string]map[string]string),
		DimensionPatterns: []DimensionPattern{},
	}
}

// LoadConfig loads alias configuration from a YAML file at the given path.
//
// Behavior:
//   - Returns empty config (not error) if file doesn't exist - aliases are optional
//   - Returns empty config + logs warning if YAML is invalid (graceful degradation)
//   - Returns populated config on success
func LoadConfig(path string) (*Config, error) {
	cfg := emptyConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Alias config not found, continuing without aliases",
				slog.String("path", path))

			return cfg, nil
		}

		slog.Warn("Failed to read alias config, continuing without aliases",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("Failed to parse alias config, continuing without aliases",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return emptyConfig(), nil
	}

	if cfg.DimensionAliases == nil {
		cfg.DimensionAliases = make(map[string]map[string]string)
	}

	if cfg.DimensionPatterns == nil {
		cfg.DimensionPatterns = []DimensionPattern{}
	}

	return cfg, nil
}

// LoadConfigFromEnv loads config from the path in ROSTER_ALIAS_CONFIG,
// falling back to ".roster.yaml" in the current directory.
func LoadConfigFromEnv() (*Config, error) {
	path := config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath)

	return LoadConfig(path)
}
