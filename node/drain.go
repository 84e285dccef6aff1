package node

import (
	"context"

	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/avengine/kernel"
	"github.com/xaionaro-go/avengine/logger"
)

func (n *Node[K]) GetChangeChanIsServing() <-chan struct{} {
	return *xatomic.LoadPointer(&n.ChangeChanIsServing)
}

func (n *Node[K]) GetChangeChanDrained() <-chan struct{} {
	return *xatomic.LoadPointer(&n.ChangeChanDrained)
}

func (n *Node[K]) signalDrainedChange() {
	close(*xatomic.SwapPointer(&n.ChangeChanDrained, ptr(make(chan struct{}))))
}

// IsDrained reports whether the node holds no buffered work: the input
// queue is empty and the kernel retains no undelivered frames.
func (n *Node[K]) IsDrained(ctx context.Context) (_ret bool) {
	logger.Tracef(ctx, "IsDrained")
	defer func() { logger.Tracef(ctx, "/IsDrained: %v", _ret) }()
	if len(n.InputFrameCh) != 0 {
		return false
	}
	if flusher, ok := kernel.Abstract(n.Kernel).(kernel.Flusher); ok {
		return !flusher.IsDirty(ctx)
	}
	return true
}

// WaitForDrained blocks until the node reports drained or the context
// is closed.
func WaitForDrained(
	ctx context.Context,
	n Abstract,
) error {
	logger.Tracef(ctx, "WaitForDrained(%s)", n)
	defer func() { logger.Tracef(ctx, "/WaitForDrained(%s)", n) }()
	for {
		ch := n.GetChangeChanDrained()
		if n.IsDrained(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
