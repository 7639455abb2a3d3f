package gas

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/argus-bot/telemetry/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeADC map[int]int

func (f fakeADC) ReadRaw(channel int) (int, error) {
	raw, ok := f[channel]
	if !ok {
		return 0, fmt.Errorf("%w: channel %d", ErrADCRead, channel)
	}
	return raw, nil
}

func TestPercent(t *testing.T) {
	cfg := config.LoadBaseline().Gas

	tests := []struct {
		name string
		raw  int
		want float64
	}{
		{"zero", 0, 0},
		{"full scale adc exceeds sensor range", 4095, 100},
		{"negative clamps", -10, 0},
		{"above range clamps", 1 << 20, 100},
		// 1861 counts -> 1.4997V -> 2.4995V sensor -> ~50%
		{"midpoint", 1861, 49.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percent(tt.raw, cfg), 0.01)
		})
	}
}

func TestPercentAlwaysInRange(t *testing.T) {
	cfg := config.LoadBaseline().Gas
	for raw := -100; raw <= cfg.ADCMax+100; raw++ {
		pct := Percent(raw, cfg)
		if pct < 0 || pct > 100 {
			t.Fatalf("Percent(%d) = %v, out of [0,100]", raw, pct)
		}
	}
}

func TestPercentUpperBoundExact(t *testing.T) {
	cfg := config.LoadBaseline().Gas
	// 3724 counts * 3.3/4095 * 5/3 > 5V
	assert.Equal(t, 100.0, Percent(3724, cfg))
}

func TestSamplerRead(t *testing.T) {
	cfg := config.LoadBaseline().Gas
	adc := fakeADC{cfg.MQ135Channel: 0, cfg.MQ9Channel: 4095}

	got := NewSampler(adc, cfg).Read()
	assert.Equal(t, Reading{MQ135Pct: 0, MQ9Pct: 100}, got)
}

func TestSamplerReadFailureIsZero(t *testing.T) {
	cfg := config.LoadBaseline().Gas
	adc := fakeADC{cfg.MQ135Channel: 2000}

	s := NewSampler(adc, cfg)
	assert.Equal(t, 0.0, s.Sample(cfg.MQ9Channel))
	assert.Greater(t, s.Sample(cfg.MQ135Channel), 0.0)
}

func TestSimADCInRange(t *testing.T) {
	adc := NewSimADC(4095, 7)
	for i := 0; i < 1000; i++ {
		raw, err := adc.ReadRaw(i % 10)
		require.NoError(t, err)
		require.GreaterOrEqual(t, raw, 0)
		require.LessOrEqual(t, raw, 4095)
	}
}

func TestIIOADC(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in_voltage5_raw"), []byte("2048\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in_voltage8_raw"), []byte("garbage"), 0o644))

	adc, err := NewIIOADC(dir)
	require.NoError(t, err)

	raw, err := adc.ReadRaw(5)
	require.NoError(t, err)
	assert.Equal(t, 2048, raw)

	_, err = adc.ReadRaw(8)
	assert.True(t, errors.Is(err, ErrADCRead))

	_, err = adc.ReadRaw(3)
	assert.True(t, errors.Is(err, ErrADCRead))
}

func TestOpenADC(t *testing.T) {
	cfg := config.LoadBaseline().Gas

	adc, err := OpenADC(cfg)
	require.NoError(t, err)
	assert.IsType(t, &SimADC{}, adc)

	cfg.Device = config.DeviceIIO
	cfg.IIODevice = filepath.Join(t.TempDir(), "missing")
	_, err = OpenADC(cfg)
	assert.Error(t, err)

	cfg.Device = "spi"
	_, err = OpenADC(cfg)
	assert.ErrorIs(t, err, ErrUnknownDevice)
}
