// Package gas converts raw ADC readings from the MQ-135 and MQ-9 sensors into
// percentages of the sensors' rated output.
package gas

import (
	"log/slog"
	"math"

	"github.com/argus-bot/telemetry/internal/config"
)

// ADC reads one raw conversion from an analog channel.
type ADC interface {
	ReadRaw(channel int) (int, error)
}

// Reading is one pair of gas percentages, each in [0,100].
type Reading struct {
	MQ135Pct float64
	MQ9Pct   float64
}

// Sampler is stateless apart from its handles: no smoothing, no history.
type Sampler struct {
	adc    ADC
	cfg    config.GasConfig
	logger *slog.Logger
}

// WithLogger sets the logger used for ADC read failures.
func WithLogger(logger *slog.Logger) func(*Sampler) {
	return func(s *Sampler) {
		s.logger = logger
	}
}

// NewSampler binds an ADC to the front-end parameters in cfg.
func NewSampler(adc ADC, cfg config.GasConfig, options ...func(*Sampler)) *Sampler {
	s := &Sampler{
		adc:    adc,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Sample reads one channel and returns its percentage. A failed read is
// logged and treated as a zero conversion.
func (s *Sampler) Sample(channel int) float64 {
	raw, err := s.adc.ReadRaw(channel)
	if err != nil {
		s.logger.Warn("adc read failed", "channel", channel, "error", err)
		raw = 0
	}
	return Percent(raw, s.cfg)
}

// Read samples both gas channels.
func (s *Sampler) Read() Reading {
	return Reading{
		MQ135Pct: s.Sample(s.cfg.MQ135Channel),
		MQ9Pct:   s.Sample(s.cfg.MQ9Channel),
	}
}

// Percent maps a raw conversion onto the sensor's 0..SensorFullScale output,
// undoing the resistor divider, and clamps the result to [0,100].
func Percent(raw int, cfg config.GasConfig) float64 {
	vADC := float64(raw) / float64(cfg.ADCMax) * cfg.ADCRef
	vSensor := vADC * cfg.DividerFactor()
	pct := vSensor / cfg.SensorFullScale * 100

	if math.IsNaN(pct) {
		return 0
	}
	return math.Min(math.Max(pct, 0), 100)
}
