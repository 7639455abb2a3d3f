package thermal

import (
	"fmt"
	"math"
	"sync"
)

// SimImager renders a room-temperature scene with a warm blob that circles
// the field of view.
type SimImager struct {
	mu sync.Mutex

	// BeginFailures makes the first N Begin calls fail.
	BeginFailures int
	// FailEvery makes every Nth ReadFrame fail. Zero never fails.
	FailEvery int

	ready bool
	rate  float64
	reads int
}

// NewSimImager returns an imager that answers on the first Begin.
func NewSimImager() *SimImager {
	return &SimImager{}
}

func (s *SimImager) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.BeginFailures > 0 {
		s.BeginFailures--
		return fmt.Errorf("%w: no ack at 0x33", ErrImagerNotReady)
	}
	s.ready = true
	return nil
}

func (s *SimImager) SetRefreshRate(hz float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return ErrImagerNotReady
	}
	s.rate = hz
	return nil
}

func (s *SimImager) ReadFrame(dst *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return ErrImagerNotReady
	}
	s.reads++
	if s.FailEvery > 0 && s.reads%s.FailEvery == 0 {
		return fmt.Errorf("%w: subpage %d missing", ErrFrameIncomplete, s.reads%2)
	}

	phase := float64(s.reads) / 16
	cx := Width/2 + 10*math.Cos(phase)
	cy := Height/2 + 6*math.Sin(phase)

	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			blob := 12 * math.Exp(-(dx*dx+dy*dy)/18)
			ambient := 22 + 0.05*float64(y)
			dst[y*Width+x] = float32(ambient + blob)
		}
	}
	return nil
}
