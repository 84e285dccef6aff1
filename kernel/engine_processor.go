package kernel

import (
	"context"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/frame"
	"github.com/xaionaro-go/avengine/helpers/closuresignaler"
	"github.com/xaionaro-go/avengine/logger"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// EngineProcessor is the per-filter-instance orchestrator: it owns one
// engine session, submits every input frame to it and decides — based on the
// Mode — which output frames go downstream and when.
//
// The filter-graph pull protocol guarantees one outstanding request at a
// time, so SendInputFrame and Flush never run concurrently for the same
// instance.
type EngineProcessor struct {
	*closuresignaler.ClosureSignaler

	Mode        Mode
	Backend     engine.Backend
	DrainConfig DrainConfig

	// OutputFrameDuration is the nominal duration of one emitted frame in
	// output time-base units; used in synthesis mode, where the engine
	// reports timestamps but not durations.
	OutputFrameDuration int64

	Locker    xsync.Mutex
	Session   *engine.Session
	PrevFrame frame.Slot

	FramesSubmitted atomic.Uint64
	FramesEmitted   atomic.Uint64

	lastStreamIndex int
}

var _ Abstract = (*EngineProcessor)(nil)
var _ Flusher = (*EngineProcessor)(nil)

func NewEngineProcessor(
	mode Mode,
	backend engine.Backend,
	drainCfg DrainConfig,
) *EngineProcessor {
	return &EngineProcessor{
		ClosureSignaler: closuresignaler.New(),
		Mode:            mode,
		Backend:         backend,
		DrainConfig:     drainCfg.withDefaults(),
	}
}

func (p *EngineProcessor) String() string {
	return fmt.Sprintf("EngineProcessor(%s)", p.Mode)
}

// Configure creates the engine session. It is expected to be called exactly
// once, as soon as the stream properties are known and before the first
// frame is dispatched; repeated calls are ignored.
func (p *EngineProcessor) Configure(
	ctx context.Context,
	cfg engine.Config,
	props engine.StreamProps,
) (_err error) {
	logger.Debugf(ctx, "Configure")
	defer func() { logger.Debugf(ctx, "/Configure: %v", _err) }()
	return xsync.DoA3R1(ctx, &p.Locker, p.configure, ctx, cfg, props)
}

func (p *EngineProcessor) configure(
	ctx context.Context,
	cfg engine.Config,
	props engine.StreamProps,
) error {
	if p.Session != nil {
		logger.Debugf(ctx, "already configured")
		return nil
	}
	sess, err := engine.NewSession(ctx, p.Backend, cfg, props)
	if err != nil {
		return err
	}
	p.Session = sess
	return nil
}

// IsConfigured reports whether the session was already created.
func (p *EngineProcessor) IsConfigured(ctx context.Context) bool {
	return xsync.DoR1(ctx, &p.Locker, func() bool { return p.Session != nil })
}

// SendInputFrame hands one input frame over to the engine and forwards zero
// or more output frames downstream, depending on the Mode. Ownership of the
// input frame transfers to the processor; a submission failure is fatal for
// the stream and releases the frame.
func (p *EngineProcessor) SendInputFrame(
	ctx context.Context,
	input frame.Input,
	outputFramesCh chan<- frame.Output,
) (_err error) {
	logger.Tracef(ctx, "SendInputFrame(pts: %d)", input.GetPTS())
	defer func() { logger.Tracef(ctx, "/SendInputFrame(pts: %d): %v", input.GetPTS(), _err) }()
	if p.IsClosed() {
		return io.ErrClosedPipe
	}
	return xsync.DoA3R1(ctx, &p.Locker, p.sendInputFrame, ctx, input, outputFramesCh)
}

func (p *EngineProcessor) sendInputFrame(
	ctx context.Context,
	input frame.Input,
	outputFramesCh chan<- frame.Output,
) error {
	if p.Session == nil {
		frame.Pool.Put(input.Frame)
		return fmt.Errorf("internal error: received a frame before the stream was configured")
	}
	p.lastStreamIndex = input.StreamIndex

	if err := p.Session.Submit(ctx, input.Frame, input.GetPTS()); err != nil {
		frame.Pool.Put(input.Frame)
		return err
	}
	p.FramesSubmitted.Inc()

	switch {
	case p.Mode.echoesInput():
		if p.Mode.pumpsMidStream() {
			if _, err := p.pump(ctx, nil, false); err != nil {
				frame.Pool.Put(input.Frame)
				return err
			}
		}
		return p.forward(ctx, frame.Output(input), outputFramesCh)
	case p.Mode == ModeSynthesis:
		p.PrevFrame.Replace(input.Frame, input.GetPTS(), input.GetDuration())
		_, err := p.pump(ctx, outputFramesCh, false)
		return err
	default:
		frame.Pool.Put(input.Frame)
		return fmt.Errorf("internal error: unexpected mode %v", p.Mode)
	}
}

// pump retrieves every currently-ready output frame from the engine without
// blocking. When outputFramesCh is nil the frames are discarded. During the
// drain phase (tail == true) the duration of the final synthesized segment
// is derived from the retained input frame's timestamp.
func (p *EngineProcessor) pump(
	ctx context.Context,
	outputFramesCh chan<- frame.Output,
	tail bool,
) (_emitted int, _err error) {
	logger.Tracef(ctx, "pump(tail: %t)", tail)
	defer func() { logger.Tracef(ctx, "/pump(tail: %t): %d %v", tail, _emitted, _err) }()

	emitted := 0
	for {
		out := frame.Pool.Get()
		pts, ok, err := p.Session.TryEmit(ctx, out)
		if err != nil {
			frame.Pool.Put(out)
			return emitted, err
		}
		if !ok {
			frame.Pool.Put(out)
			return emitted, nil
		}
		if pts < 0 {
			logger.Errorf(ctx, "ignoring an output frame with timestamp %d", pts)
			frame.Pool.Put(out)
			continue
		}
		if outputFramesCh == nil {
			logger.Debugf(ctx, "discarding an output frame with timestamp %d", pts)
			frame.Pool.Put(out)
			emitted++
			continue
		}

		out.SetPts(pts)
		duration := p.OutputFrameDuration
		if tail {
			if prevPTS, prevDur := p.PrevFrame.PTS(), p.PrevFrame.Duration(); p.PrevFrame.IsSet() {
				if remaining := prevPTS + prevDur - pts; remaining >= 0 && remaining < duration {
					duration = remaining
				}
			}
		}
		outToSend := frame.BuildOutput(out, p.outputTimeBase(), p.lastStreamIndex, duration)
		if err := p.forward(ctx, outToSend, outputFramesCh); err != nil {
			return emitted, err
		}
		emitted++
	}
}

func (p *EngineProcessor) outputTimeBase() astiav.Rational {
	return p.Session.Props.TimeBase
}

func (p *EngineProcessor) forward(
	ctx context.Context,
	out frame.Output,
	outputFramesCh chan<- frame.Output,
) (_err error) {
	p.Locker.UDo(ctx, func() {
		select {
		case <-ctx.Done():
			_err = ctx.Err()
		case outputFramesCh <- out:
		}
	})
	if _err == nil {
		p.FramesEmitted.Inc()
	}
	return
}

// Generate is a no-op: the processor only reacts to input frames.
func (p *EngineProcessor) Generate(
	ctx context.Context,
	outputFramesCh chan<- frame.Output,
) error {
	return nil
}

// IsDirty reports whether the processor still holds frames that have not
// reached the downstream yet.
func (p *EngineProcessor) IsDirty(ctx context.Context) bool {
	return xsync.DoR1(ctx, &p.Locker, func() bool {
		if p.PrevFrame.IsSet() {
			return true
		}
		if p.Session == nil {
			return false
		}
		if p.Session.State(ctx) != engine.StateDraining {
			return false
		}
		return p.Session.PendingCount(ctx) > 0
	})
}

// Close tears the processor down. Unconditional: any residual engine backlog
// is dropped.
func (p *EngineProcessor) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()
	p.ClosureSignaler.Close(ctx)
	return xsync.DoR1(ctx, &p.Locker, func() error {
		p.PrevFrame.Release()
		if p.Session == nil {
			return nil
		}
		return p.Session.Close(ctx)
	})
}
