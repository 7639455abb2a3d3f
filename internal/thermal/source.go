package thermal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/argus-bot/telemetry/internal/config"
)

var (
	ErrImagerNotReady  = errors.New("thermal imager not ready")
	ErrFrameIncomplete = errors.New("thermal frame incomplete")
	ErrUnknownDevice   = errors.New("unknown thermal device")
)

// Imager is the driver capability the source needs.
type Imager interface {
	// Begin probes and initialises the device.
	Begin() error
	SetRefreshRate(hz float64) error
	// ReadFrame polls one complete frame into dst.
	ReadFrame(dst *Frame) error
}

// OpenImager returns the driver named by cfg.Device.
func OpenImager(cfg config.ThermalConfig) (Imager, error) {
	switch cfg.Device {
	case config.DeviceSim:
		return NewSimImager(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, cfg.Device)
	}
}

// Source wraps an initialised imager and its single frame buffer.
type Source struct {
	imager Imager
	buf    Frame
	logger *slog.Logger
}

// WithLogger sets the logger for init diagnostics and poll failures.
func WithLogger(logger *slog.Logger) func(*Source) {
	return func(s *Source) {
		s.logger = logger
	}
}

// Open initialises the imager, retrying every cfg.InitRetryInterval until it
// answers. There is no degraded mode: only ctx ends the retry.
func Open(ctx context.Context, imager Imager, cfg config.ThermalConfig, options ...func(*Source)) (*Source, error) {
	s := &Source{
		imager: imager,
		logger: slog.Default(),
	}
	for _, option := range options {
		option(s)
	}

	for attempt := 1; ; attempt++ {
		err := imager.Begin()
		if err == nil {
			if attempt > 1 {
				s.logger.Info("thermal imager detected", "attempts", attempt)
			}
			break
		}

		s.logger.Error("thermal imager not detected, check wiring",
			"attempt", attempt,
			"retry_in", cfg.InitRetryInterval,
			"error", err)

		timer := time.NewTimer(cfg.InitRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("thermal init aborted after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}

	if err := imager.SetRefreshRate(cfg.RefreshRate); err != nil {
		return nil, fmt.Errorf("set refresh rate %.1f Hz: %w", cfg.RefreshRate, err)
	}

	return s, nil
}

// Acquire polls one frame. On success it returns a copy of the refreshed
// buffer; on failure it returns false and the caller skips this cycle.
func (s *Source) Acquire() (Frame, bool) {
	if err := s.imager.ReadFrame(&s.buf); err != nil {
		s.logger.Debug("thermal frame unavailable", "error", err)
		return Frame{}, false
	}
	return s.buf, true
}
