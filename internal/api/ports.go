package api

import (
	"io"
	"time"

	"github.com/argus-bot/telemetry/internal/loop"
	"github.com/argus-bot/telemetry/internal/telemetry"
	"github.com/argus-bot/telemetry/internal/thermal"
)

// HubPort is what the server needs from the observer hub.
type HubPort interface {
	Register(o telemetry.Observer) bool
	Unregister(id string) bool
	Len() int
}

// LoopPort exposes the sample loop counters.
type LoopPort interface {
	Stats() loop.Stats
}

// SnapshotPort returns the latest acquired frame.
type SnapshotPort interface {
	Load() (thermal.Frame, time.Time, bool)
}

// FrameRenderer encodes a frame as an image.
type FrameRenderer interface {
	Render(w io.Writer, f *thermal.Frame) error
}

var (
	_ HubPort       = (*telemetry.Hub)(nil)
	_ LoopPort      = (*loop.Loop)(nil)
	_ LoopPort      = (*loop.Handle)(nil)
	_ SnapshotPort  = (*thermal.Snapshot)(nil)
	_ FrameRenderer = (*thermal.Renderer)(nil)
)
