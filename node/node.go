package node

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avengine/frame"
	"github.com/xaionaro-go/avengine/kernel"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// Abstract is a Kernel wrapped into a servable unit: the node owns the
// input and output frame queues and the serving goroutine's lifecycle.
type Abstract interface {
	Serve(context.Context, ServeConfig, chan<- Error)

	GetKernel() kernel.Abstract
	GetStatistics() *Statistics
	InputChan() chan<- frame.Input
	OutputChan() <-chan frame.Output

	IsServing() bool
	GetChangeChanIsServing() <-chan struct{}
	IsDrained(context.Context) bool
	GetChangeChanDrained() <-chan struct{}
}

type Node[K kernel.Abstract] struct {
	*Statistics
	Kernel        K
	InputFrameCh  chan frame.Input
	OutputFrameCh chan frame.Output

	Locker              xsync.Mutex
	IsServingValue      bool
	ChangeChanIsServing *chan struct{}
	ChangeChanDrained   *chan struct{}
}

var _ Abstract = (*Node[kernel.Abstract])(nil)

type Statistics struct {
	FramesReceived atomic.Uint64
	FramesMissed   atomic.Uint64
}

func NewFromKernel[K kernel.Abstract](
	ctx context.Context,
	k K,
	opts ...Option,
) *Node[K] {
	cfg := Options(opts).config(ctx)
	n := &Node[K]{
		Statistics:          &Statistics{},
		Kernel:              k,
		InputFrameCh:        make(chan frame.Input, cfg.InputQueueSize),
		OutputFrameCh:       make(chan frame.Output, cfg.OutputQueueSize),
		ChangeChanIsServing: ptr(make(chan struct{})),
		ChangeChanDrained:   ptr(make(chan struct{})),
	}
	return n
}

func (n *Node[K]) String() string {
	return fmt.Sprintf("Node(%s)", n.Kernel)
}

func (n *Node[K]) GetKernel() kernel.Abstract {
	if n == nil {
		var zeroValue kernel.Abstract
		return zeroValue
	}
	return n.Kernel
}

func (n *Node[K]) GetStatistics() *Statistics {
	return n.Statistics
}

func (n *Node[K]) InputChan() chan<- frame.Input {
	return n.InputFrameCh
}

func (n *Node[K]) OutputChan() <-chan frame.Output {
	return n.OutputFrameCh
}

func (n *Node[K]) IsServing() bool {
	return xsync.DoR1(context.TODO(), &n.Locker, func() bool {
		return n.IsServingValue
	})
}
