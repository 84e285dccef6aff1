// Package engine wraps an opaque, stateful, possibly-asynchronous external
// frame-processing backend (a model executor) behind a capability interface,
// and manages the lifecycle of one configured instance of it.
package engine

import (
	"context"
	"time"

	"github.com/asticode/go-astiav"
)

// Backend is the factory side of the external engine. Implementations may be
// a native binding, an in-process reimplementation (see softengine), or a
// mock (see enginetest); callers depend only on this interface.
type Backend interface {
	// Create instantiates the engine for one stream. It returns an error if
	// the engine cannot satisfy the requested model/device/resource
	// combination (unknown model, unsupported geometry, downloads disabled
	// while the weights are absent, ...).
	Create(ctx context.Context, cfg Config, props StreamProps) (BackendHandle, error)
}

// BackendHandle is one live engine instance. All methods are synchronous
// calls with potentially nonzero but bounded latency; whatever concurrency
// the engine uses internally is opaque to the adapter.
type BackendHandle interface {
	// Submit hands one input frame to the engine. The engine may buffer it
	// internally. The frame is only borrowed for the duration of the call.
	Submit(ctx context.Context, f *astiav.Frame, pts int64) error

	// TryEmit polls for a ready output frame without blocking. When a frame
	// is available it is written into dst and its engine-computed timestamp
	// is returned with ok == true.
	TryEmit(ctx context.Context, dst *astiav.Frame) (pts int64, ok bool, err error)

	// SignalEnd tells the engine no further Submit calls will happen, so it
	// must flush any look-ahead state needed to finish in-flight frames.
	SignalEnd(ctx context.Context)

	// PendingCount reports how many submitted frames are not yet fully
	// resolved into output. Only meaningful after SignalEnd.
	PendingCount(ctx context.Context) int

	// Wait blocks the calling thread for the given duration, giving the
	// engine's internal workers time to make progress.
	Wait(d time.Duration)

	// Destroy releases all engine-held resources. Unresolved frames are
	// silently discarded.
	Destroy(ctx context.Context)
}

// OutputSizer is an optional interface of BackendHandle: engines that decide
// the output geometry themselves (e.g. auto-crop stabilization) report it
// here after Create.
type OutputSizer interface {
	OutputSize() (width, height int)
}
