package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/rewind/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "REWIND_CONFIG"

// envPrefix namespaces our environment variables.
const envPrefix = "REWIND_"

// configSections are the top-level keys env vars can address. The env
// transform needs them to split REWIND_SERVER_READ_TIMEOUT into
// server.read_timeout.
var configSections = []string{
	"server", "spotify", "billboard", "database",
	"analysis", "ratelimit", "worker", "logging",
}

// Load builds the configuration from defaults, then an optional YAML file,
// then environment variables, each layer overriding the previous.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform maps REWIND_SECTION_SOME_KEY to section.some_key. Variables
// that don't address a known section are skipped.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if key == strings.ToLower(ConfigPathEnvVar[len(envPrefix):]) {
		return ""
	}
	for _, section := range configSections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return ""
}
