// drain.go implements the end-of-stream drain of the engine's backlog.

package kernel

import (
	"context"
	"time"

	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/frame"
	"github.com/xaionaro-go/avengine/logger"
	"github.com/xaionaro-go/xsync"
)

const (
	// DefaultDrainPollInterval is how long the drain loop lets the engine
	// work between backlog polls.
	DefaultDrainPollInterval = 20 * time.Millisecond

	// DefaultDrainMaxStallPolls is how many consecutive polls without any
	// progress are tolerated before the drain is declared stuck. Progress
	// (the backlog shrinking or a frame being emitted) resets the counter.
	DefaultDrainMaxStallPolls = 50
)

// DrainConfig bounds the end-of-stream drain loop.
type DrainConfig struct {
	PollInterval  time.Duration
	MaxStallPolls int
}

func (cfg DrainConfig) withDefaults() DrainConfig {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultDrainPollInterval
	}
	if cfg.MaxStallPolls == 0 {
		cfg.MaxStallPolls = DefaultDrainMaxStallPolls
	}
	return cfg
}

// Flush is invoked when the upstream reports stream exhaustion, before the
// exhaustion signal may propagate downstream: it tells the engine no further
// input will arrive and pumps the buffered output frames until the backlog
// clears. Synthesis mode forwards the pumped frames (finalizing the tail
// segment from the retained input frame), the echo-through modes discard
// them.
func (p *EngineProcessor) Flush(
	ctx context.Context,
	outputFramesCh chan<- frame.Output,
) (_err error) {
	logger.Debugf(ctx, "Flush")
	defer func() { logger.Debugf(ctx, "/Flush: %v", _err) }()
	if p.IsClosed() {
		return nil
	}
	return xsync.DoA2R1(ctx, &p.Locker, p.flush, ctx, outputFramesCh)
}

func (p *EngineProcessor) flush(
	ctx context.Context,
	outputFramesCh chan<- frame.Output,
) error {
	if p.Session == nil {
		// no frame ever arrived, there is nothing to drain
		return nil
	}

	p.Session.SignalEnd(ctx)

	forwardCh := outputFramesCh
	if !p.Mode.forwardsEngineOutput() {
		forwardCh = nil
	}

	stallPolls := 0
	prevPending := -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pending := p.Session.PendingCount(ctx)
		if pending <= 0 {
			break
		}

		emitted, err := p.pump(ctx, forwardCh, true)
		if err != nil {
			return err
		}

		if emitted > 0 || pending != prevPending {
			stallPolls = 0
		} else {
			stallPolls++
			if stallPolls >= p.DrainConfig.MaxStallPolls {
				return engine.ErrDrainTimedOut{Pending: pending}
			}
		}
		prevPending = pending

		if emitted == 0 {
			p.Session.Wait(p.DrainConfig.PollInterval)
		}
	}

	p.PrevFrame.Release()
	return nil
}
