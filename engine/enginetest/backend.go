// Package enginetest provides a mock engine backend for tests.
package enginetest

import (
	"context"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avengine/engine"
)

// Backend is a mock engine.Backend: set the Fn fields to override behavior,
// the call counters track usage.
type Backend struct {
	CreateFn func(
		ctx context.Context,
		cfg engine.Config,
		props engine.StreamProps,
	) (engine.BackendHandle, error)
	CreateCallCount int

	// Handle is what Create returns when CreateFn is nil.
	Handle *Handle
}

var _ engine.Backend = (*Backend)(nil)

func (b *Backend) Create(
	ctx context.Context,
	cfg engine.Config,
	props engine.StreamProps,
) (engine.BackendHandle, error) {
	b.CreateCallCount++
	if b.CreateFn != nil {
		return b.CreateFn(ctx, cfg, props)
	}
	if b.Handle == nil {
		b.Handle = &Handle{}
	}
	return b.Handle, nil
}

// Handle is a mock engine.BackendHandle.
//
// Without overrides it behaves as a well-behaved echo engine: every submitted
// PTS becomes exactly one ready output with the same PTS.
type Handle struct {
	SubmitFn        func(ctx context.Context, f *astiav.Frame, pts int64) error
	SubmitCallCount int

	TryEmitFn        func(ctx context.Context, dst *astiav.Frame) (int64, bool, error)
	TryEmitCallCount int

	SignalEndCallCount int

	PendingCountFn        func(ctx context.Context) int
	PendingCountCallCount int

	WaitCallCount int
	WaitTotal     time.Duration

	DestroyCallCount int

	// ReadyPTS is the queue of output timestamps TryEmit will deliver.
	ReadyPTS []int64
}

var _ engine.BackendHandle = (*Handle)(nil)

func (h *Handle) Submit(ctx context.Context, f *astiav.Frame, pts int64) error {
	h.SubmitCallCount++
	if h.SubmitFn != nil {
		return h.SubmitFn(ctx, f, pts)
	}
	h.ReadyPTS = append(h.ReadyPTS, pts)
	return nil
}

func (h *Handle) TryEmit(ctx context.Context, dst *astiav.Frame) (int64, bool, error) {
	h.TryEmitCallCount++
	if h.TryEmitFn != nil {
		return h.TryEmitFn(ctx, dst)
	}
	if len(h.ReadyPTS) == 0 {
		return 0, false, nil
	}
	pts := h.ReadyPTS[0]
	h.ReadyPTS = h.ReadyPTS[1:]
	return pts, true, nil
}

func (h *Handle) SignalEnd(ctx context.Context) {
	h.SignalEndCallCount++
}

func (h *Handle) PendingCount(ctx context.Context) int {
	h.PendingCountCallCount++
	if h.PendingCountFn != nil {
		return h.PendingCountFn(ctx)
	}
	return len(h.ReadyPTS)
}

func (h *Handle) Wait(d time.Duration) {
	h.WaitCallCount++
	h.WaitTotal += d
}

func (h *Handle) Destroy(ctx context.Context) {
	h.DestroyCallCount++
}
