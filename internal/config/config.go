package config

import "time"

// Config is the complete broadcaster configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Gas       GasConfig       `yaml:"gas"`
	Thermal   ThermalConfig   `yaml:"thermal"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty disables the rotated log file
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
}

// ServerConfig holds the embedded HTTP service settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	WSPath       string        `yaml:"wsPath"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// BroadcastConfig holds the loop cadence and per-observer delivery limits.
type BroadcastConfig struct {
	Interval     time.Duration `yaml:"interval"`
	SendBuffer   int           `yaml:"sendBuffer"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	PingInterval time.Duration `yaml:"pingInterval"`
	MaxDropped   int           `yaml:"maxDropped"`
}

// GasConfig describes the two gas channels and the analog front end.
type GasConfig struct {
	Device          string  `yaml:"device"` // sim | iio
	IIODevice       string  `yaml:"iioDevice"`
	MQ135Channel    int     `yaml:"mq135Channel"`
	MQ9Channel      int     `yaml:"mq9Channel"`
	ADCRef          float64 `yaml:"adcRef"`
	ADCMax          int     `yaml:"adcMax"`
	DividerR1       float64 `yaml:"dividerR1"`
	DividerR2       float64 `yaml:"dividerR2"`
	SensorFullScale float64 `yaml:"sensorFullScale"`
}

// DividerFactor returns the multiplier that undoes the resistor divider
// between the 0-5V sensor output and the ADC input.
func (g GasConfig) DividerFactor() float64 {
	return (g.DividerR1 + g.DividerR2) / g.DividerR2
}

// ThermalConfig describes the imager.
type ThermalConfig struct {
	Device            string        `yaml:"device"`      // sim
	RefreshRate       float64       `yaml:"refreshRate"` // Hz
	InitRetryInterval time.Duration `yaml:"initRetryInterval"`
	Snapshot          bool          `yaml:"snapshot"`
}

// RefreshPeriod is the time between two frames at the configured rate.
func (t ThermalConfig) RefreshPeriod() time.Duration {
	if t.RefreshRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / t.RefreshRate)
}

// MQTTConfig controls the optional broker mirror.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"clientID"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// LoadBaseline returns the defaults matching the robot's stock wiring:
// MQ-135 and MQ-9 behind a 10k/15k divider on a 12-bit 3.3V ADC, an
// MLX90640 at 8 Hz and a 250ms broadcast cadence.
func LoadBaseline() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Server: ServerConfig{
			Addr:         ":80",
			WSPath:       "/ws",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Broadcast: BroadcastConfig{
			Interval:     250 * time.Millisecond,
			SendBuffer:   16,
			WriteTimeout: 2 * time.Second,
			PingInterval: 15 * time.Second,
			MaxDropped:   40,
		},
		Gas: GasConfig{
			Device:          DeviceSim,
			IIODevice:       "/sys/bus/iio/devices/iio:device0",
			MQ135Channel:    5,
			MQ9Channel:      8,
			ADCRef:          3.3,
			ADCMax:          4095,
			DividerR1:       10000,
			DividerR2:       15000,
			SensorFullScale: 5.0,
		},
		Thermal: ThermalConfig{
			Device:            DeviceSim,
			RefreshRate:       8,
			InitRetryInterval: time.Second,
			Snapshot:          true,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "argus-bot",
			Topic:    "argus/telemetry",
		},
	}
}

// Device kinds.
const (
	DeviceSim = "sim"
	DeviceIIO = "iio"
)
