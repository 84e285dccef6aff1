package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"

	"github.com/facebookincubator/go-belt"
	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/avengine/kernel"
	"github.com/xaionaro-go/avengine/logger"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
)

// Serve pulls frames from the input queue and feeds them to the Kernel
// one at a time, in arrival order. When the input queue is closed it
// flushes the kernel (if it is a kernel.Flusher) and only then closes
// the output queue, so a reader draining OutputChan observes the full
// tail before EOF.
func (n *Node[K]) Serve(
	ctx context.Context,
	serveConfig ServeConfig,
	errCh chan<- Error,
) {
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	ctx = belt.WithField(ctx, "node_ptr", fmt.Sprintf("%p", n))
	ctx = belt.WithField(ctx, "kernel", n.Kernel.String())
	logger.Tracef(ctx, "Serve[%s]", n)
	defer func() { logger.Tracef(ctx, "/Serve[%s]", n) }()

	sendErr := func(err error) {
		logger.Debugf(ctx, "Serve[%s]: sendErr(%v)", n, err)
		if errCh == nil {
			return
		}
		select {
		case errCh <- Error{
			Node: n,
			Err:  err,
		}:
		default:
			logger.Errorf(ctx, "error queue is full, cannot send error: '%v'", err)
		}
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		logger.Errorf(ctx, "got panic in Node[%s]: %v:\n%s\n", n, r, debug.Stack())
	}()

	if err := xsync.DoR1(ctx, &n.Locker, func() error {
		if n.IsServingValue {
			return ErrAlreadyStarted{}
		}
		n.IsServingValue = true
		close(*xatomic.SwapPointer(&n.ChangeChanIsServing, ptr(make(chan struct{}))))
		return nil
	}); err != nil {
		sendErr(err)
		return
	}
	defer n.Locker.Do(xcontext.DetachDone(ctx), func() {
		n.IsServingValue = false
		close(*xatomic.SwapPointer(&n.ChangeChanIsServing, ptr(make(chan struct{}))))
	})

	defer close(n.OutputFrameCh)
	for {
		select {
		case <-ctx.Done():
			logger.Debugf(ctx, "Serve[%s]: context is closed", n)
			return
		case input, ok := <-n.InputFrameCh:
			if !ok {
				logger.Debugf(ctx, "Serve[%s]: the input queue is closed", n)
				n.flush(ctx, sendErr)
				return
			}
			n.FramesReceived.Add(1)
			err := n.Kernel.SendInputFrame(ctx, input, n.OutputFrameCh)
			n.signalDrainedChange()
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled), errors.Is(err, io.ErrClosedPipe):
				logger.Debugf(ctx, "Serve[%s]: the kernel is closed: %v", n, err)
				return
			default:
				n.FramesMissed.Add(1)
				sendErr(fmt.Errorf("unable to process an input frame: %w", err))
				return
			}
		}
	}
}

// flush runs on a done-detached context: a parent being canceled right
// after the input queue closes must not truncate the tail (the drain
// itself is bounded by the kernel's drain configuration).
func (n *Node[K]) flush(
	ctx context.Context,
	sendErr func(error),
) {
	flusher, ok := kernel.Abstract(n.Kernel).(kernel.Flusher)
	if !ok {
		return
	}
	flushCtx := xcontext.DetachDone(ctx)
	if err := flusher.Flush(flushCtx, n.OutputFrameCh); err != nil {
		sendErr(fmt.Errorf("unable to flush the kernel: %w", err))
	}
	n.signalDrainedChange()
}

// ServeAll starts serving every given node in its own goroutine and
// blocks until all of them finish.
func ServeAll(
	ctx context.Context,
	serveConfig ServeConfig,
	errCh chan<- Error,
	nodes ...Abstract,
) {
	logger.Tracef(ctx, "ServeAll (nodes: %v)", nodes)
	defer func() { logger.Tracef(ctx, "/ServeAll (nodes: %v)", nodes) }()
	var wg sync.WaitGroup
	for _, item := range nodes {
		item := item
		wg.Add(1)
		observability.Go(ctx, func(ctx context.Context) {
			defer wg.Done()
			item.Serve(ctx, serveConfig, errCh)
		})
	}
	wg.Wait()
}
