// Package thermal acquires frames from a 32x24 thermopile array.
//
// A Source owns exactly one frame buffer. Each successful poll overwrites it
// in place and Acquire hands the caller a copy, so an encoded frame can never
// change underneath a later poll.
package thermal

// Sensor geometry.
const (
	Width  = 32
	Height = 24
	Pixels = Width * Height
)

// Frame holds one full grid in degrees Celsius, row-major in acquisition order.
type Frame [Pixels]float32

// At returns the pixel at column x, row y.
func (f *Frame) At(x, y int) float32 {
	return f[y*Width+x]
}

// Range returns the coldest and hottest pixel.
func (f *Frame) Range() (lo, hi float32) {
	lo, hi = f[0], f[0]
	for _, v := range f[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
