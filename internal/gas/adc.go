package gas

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/argus-bot/telemetry/internal/config"
)

var (
	ErrUnknownDevice = errors.New("unknown gas device")
	ErrADCRead       = errors.New("adc read failed")
)

// OpenADC returns the ADC named by cfg.Device.
func OpenADC(cfg config.GasConfig) (ADC, error) {
	switch cfg.Device {
	case config.DeviceSim:
		return NewSimADC(cfg.ADCMax, 1), nil
	case config.DeviceIIO:
		return NewIIOADC(cfg.IIODevice)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, cfg.Device)
	}
}

// IIOADC reads conversions from a Linux industrial I/O device directory,
// one in_voltage<N>_raw attribute per channel.
type IIOADC struct {
	dir string
}

// NewIIOADC opens the IIO device directory dir.
func NewIIOADC(dir string) (*IIOADC, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("iio device %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("iio device %s: not a directory", dir)
	}
	return &IIOADC{dir: dir}, nil
}

// ReadRaw returns the latest conversion for channel.
func (a *IIOADC) ReadRaw(channel int) (int, error) {
	path := filepath.Join(a.dir, fmt.Sprintf("in_voltage%d_raw", channel))
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: channel %d: %w", ErrADCRead, channel, err)
	}
	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: channel %d: %w", ErrADCRead, channel, err)
	}
	return raw, nil
}

// SimADC produces slowly drifting conversions around a per-channel baseline.
type SimADC struct {
	mu    sync.Mutex
	max   int
	rng   *rand.Rand
	ticks map[int]int
}

// NewSimADC returns a simulated ADC with full scale max. The same seed
// yields the same sequence.
func NewSimADC(max int, seed uint64) *SimADC {
	return &SimADC{
		max:   max,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		ticks: make(map[int]int),
	}
}

func (a *SimADC) ReadRaw(channel int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.ticks[channel]
	a.ticks[channel] = n + 1

	base := 0.15 + 0.05*float64(channel%4)
	drift := 0.05 * math.Sin(float64(n)/40+float64(channel))
	noise := (a.rng.Float64() - 0.5) * 0.01

	raw := int((base + drift + noise) * float64(a.max))
	return min(max(raw, 0), a.max), nil
}
