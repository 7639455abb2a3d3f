package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// validRefreshRates lists the MLX90640 refresh rates in Hz.
var validRefreshRates = map[float64]struct{}{
	0.5: {}, 1: {}, 2: {}, 4: {}, 8: {}, 16: {}, 32: {}, 64: {},
}

var validLogLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "error": {},
}

// Validate checks the merged configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfig)
	}

	if err := validateLog(&cfg.Log); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validateGas(&cfg.Gas); err != nil {
		return fmt.Errorf("gas: %w", err)
	}
	if err := validateThermal(&cfg.Thermal); err != nil {
		return fmt.Errorf("thermal: %w", err)
	}
	if err := validateBroadcast(&cfg.Broadcast, &cfg.Thermal); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	if err := validateMQTT(&cfg.MQTT); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	return nil
}

func validateLog(c *LogConfig) error {
	if _, ok := validLogLevels[strings.ToLower(c.Level)]; !ok {
		return fmt.Errorf("%w: unknown level %q", ErrInvalidConfig, c.Level)
	}
	if c.File != "" && c.MaxSizeMB <= 0 {
		return fmt.Errorf("%w: maxSizeMB must be positive when a log file is set", ErrInvalidConfig)
	}
	return nil
}

func validateServer(c *ServerConfig) error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("%w: wsPath must start with '/': %q", ErrInvalidConfig, c.WSPath)
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	return nil
}

// validateBroadcast enforces that the loop never polls faster than the imager
// can produce frames.
func validateBroadcast(c *BroadcastConfig, t *ThermalConfig) error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if period := t.RefreshPeriod(); c.Interval < period {
		return fmt.Errorf("%w: interval %s is shorter than the thermal refresh period %s (%.1f Hz)",
			ErrInvalidConfig, c.Interval, period, t.RefreshRate)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("%w: sendBuffer must be positive", ErrInvalidConfig)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: writeTimeout must be positive", ErrInvalidConfig)
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("%w: pingInterval must be positive", ErrInvalidConfig)
	}
	if c.MaxDropped < 0 {
		return fmt.Errorf("%w: maxDropped must not be negative", ErrInvalidConfig)
	}
	return nil
}

func validateGas(c *GasConfig) error {
	switch c.Device {
	case DeviceSim:
	case DeviceIIO:
		if c.IIODevice == "" {
			return fmt.Errorf("%w: iioDevice is required for the iio device", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown device %q", ErrInvalidConfig, c.Device)
	}
	if c.MQ135Channel < 0 || c.MQ9Channel < 0 {
		return fmt.Errorf("%w: channels must not be negative", ErrInvalidConfig)
	}
	if c.MQ135Channel == c.MQ9Channel {
		return fmt.Errorf("%w: mq135Channel and mq9Channel must differ", ErrInvalidConfig)
	}
	if c.ADCRef <= 0 || c.ADCMax <= 0 {
		return fmt.Errorf("%w: adcRef and adcMax must be positive", ErrInvalidConfig)
	}
	if c.DividerR1 < 0 || c.DividerR2 <= 0 {
		return fmt.Errorf("%w: divider resistors out of range: r1=%.0f r2=%.0f", ErrInvalidConfig, c.DividerR1, c.DividerR2)
	}
	if c.SensorFullScale <= 0 {
		return fmt.Errorf("%w: sensorFullScale must be positive", ErrInvalidConfig)
	}
	return nil
}

func validateThermal(c *ThermalConfig) error {
	if c.Device != DeviceSim {
		return fmt.Errorf("%w: unknown device %q", ErrInvalidConfig, c.Device)
	}
	if _, ok := validRefreshRates[c.RefreshRate]; !ok {
		return fmt.Errorf("%w: unsupported refresh rate %.1f Hz", ErrInvalidConfig, c.RefreshRate)
	}
	if c.InitRetryInterval <= 0 {
		return fmt.Errorf("%w: initRetryInterval must be positive", ErrInvalidConfig)
	}
	return nil
}

func validateMQTT(c *MQTTConfig) error {
	if !c.Enabled {
		return nil
	}
	if c.Broker == "" || c.Topic == "" {
		return fmt.Errorf("%w: broker and topic are required when enabled", ErrInvalidConfig)
	}
	if c.QoS > 2 {
		return fmt.Errorf("%w: qos must be 0, 1 or 2", ErrInvalidConfig)
	}
	return nil
}
