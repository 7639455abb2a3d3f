package telemetry

import (
	"math"
	"strconv"

	"github.com/argus-bot/telemetry/internal/gas"
	"github.com/argus-bot/telemetry/internal/thermal"
)

// Kind discriminates messages on the wire.
type Kind string

const (
	KindGas     Kind = "gas"
	KindThermal Kind = "thermal"
)

// Message is either a gas reading or a thermal frame, selected by Kind.
type Message struct {
	Kind    Kind
	Gas     gas.Reading
	Thermal *thermal.Frame
}

// GasMessage wraps a gas reading.
func GasMessage(r gas.Reading) Message {
	return Message{Kind: KindGas, Gas: r}
}

// ThermalMessage borrows f until Encode returns.
func ThermalMessage(f *thermal.Frame) Message {
	return Message{Kind: KindThermal, Thermal: f}
}

// thermalCap covers the envelope plus a worst-case "-40.0," per pixel.
const thermalCap = 32 + thermal.Pixels*7

// Encode renders m as compact JSON with every number at one decimal place.
// It returns nil for a message with an unknown kind or a missing frame.
func Encode(m Message) []byte {
	switch m.Kind {
	case KindGas:
		buf := make([]byte, 0, 64)
		buf = append(buf, `{"type":"gas","mq135_pct":`...)
		buf = appendDecimal(buf, m.Gas.MQ135Pct)
		buf = append(buf, `,"mq9_pct":`...)
		buf = appendDecimal(buf, m.Gas.MQ9Pct)
		return append(buf, '}')

	case KindThermal:
		if m.Thermal == nil {
			return nil
		}
		buf := make([]byte, 0, thermalCap)
		buf = append(buf, `{"type":"thermal","data":[`...)
		for i, v := range m.Thermal {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendDecimal(buf, float64(v))
		}
		return append(buf, ']', '}')
	}
	return nil
}

// appendDecimal writes v rounded half away from zero to one decimal. JSON has
// no NaN or Inf, so non-finite values are written as 0.0.
func appendDecimal(buf []byte, v float64) []byte {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	r := math.Round(v*10) / 10
	if r == 0 {
		r = 0 // drop the sign of -0
	}
	return strconv.AppendFloat(buf, r, 'f', 1, 64)
}
