package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// EnvConfigPath names the variable that points at a YAML config file when no
// explicit path is given.
const EnvConfigPath = "ARGUS_CONFIG"

// Load merges LoadBaseline() + the YAML file at path (or $ARGUS_CONFIG) +
// ARGUS_* environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := LoadBaseline()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML document onto cfg. Keys absent from the
// file keep their current value.
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.UnmarshalStrict(data, cfg)
}

// applyEnvOverrides applies ARGUS_* environment variables to the config.
// Malformed values are reported instead of silently ignored.
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("ARGUS_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}

	if val := os.Getenv("ARGUS_LOG_FILE"); val != "" {
		cfg.Log.File = val
	}

	if val := os.Getenv("ARGUS_SERVER_ADDR"); val != "" {
		cfg.Server.Addr = val
	}

	if val := os.Getenv("ARGUS_BROADCAST_INTERVAL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("ARGUS_BROADCAST_INTERVAL: %w", err)
		}
		cfg.Broadcast.Interval = d
	}

	if val := os.Getenv("ARGUS_THERMAL_REFRESH_RATE"); val != "" {
		hz, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("ARGUS_THERMAL_REFRESH_RATE: %w", err)
		}
		cfg.Thermal.RefreshRate = hz
	}

	if val := os.Getenv("ARGUS_GAS_DEVICE"); val != "" {
		cfg.Gas.Device = val
	}

	if val := os.Getenv("ARGUS_MQTT_ENABLED"); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("ARGUS_MQTT_ENABLED: %w", err)
		}
		cfg.MQTT.Enabled = enabled
	}

	if val := os.Getenv("ARGUS_MQTT_BROKER"); val != "" {
		cfg.MQTT.Broker = val
	}

	return nil
}
