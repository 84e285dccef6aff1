// Package kernel implements the per-frame orchestration between a pull-based
// filter graph and an external frame-processing engine.
package kernel

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avengine/frame"
)

type Abstract interface {
	SendInputer
	fmt.Stringer
	Closer
	CloseChaner
	Generator
}

type SendInputer interface {
	SendInputFrame(
		ctx context.Context,
		input frame.Input,
		outputFramesCh chan<- frame.Output,
	) error
}

type Closer interface {
	Close(ctx context.Context) error
}

type CloseChaner interface {
	CloseChan() <-chan struct{}
}

type Generator interface {
	Generate(
		ctx context.Context,
		outputFramesCh chan<- frame.Output,
	) error
}

// Flusher is implemented by kernels that buffer frames internally and need a
// drain phase before the end-of-stream signal may propagate downstream.
type Flusher interface {
	Flush(
		ctx context.Context,
		outputFramesCh chan<- frame.Output,
	) error
	IsDirty(ctx context.Context) bool
}
