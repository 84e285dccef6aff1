package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/davecgh/go-spew/spew"
	"github.com/xaionaro-go/avengine/helpers/closuresignaler"
	"github.com/xaionaro-go/avengine/logger"
	"github.com/xaionaro-go/xsync"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateUnconfigured State = iota
	StateReady
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("<unknown:%d>", int(s))
	}
}

// Session owns the lifecycle of one live engine instance, bound to one
// stream's geometry and parameters. It is exclusively owned by one filter
// instance and is not safe for concurrent use beyond what the filter-graph
// pull protocol guarantees (one outstanding request at a time).
type Session struct {
	*closuresignaler.ClosureSignaler

	Config Config
	Props  StreamProps

	locker xsync.Mutex
	handle BackendHandle
	closer *astikit.Closer
	state  State
}

// NewSession validates the configuration and instantiates the engine.
// It is expected to be called lazily, once the stream properties are known.
func NewSession(
	ctx context.Context,
	backend Backend,
	cfg Config,
	props StreamProps,
) (_ *Session, _err error) {
	logger.Debugf(ctx, "NewSession(%s)", cfg.Model)
	defer func() { logger.Debugf(ctx, "/NewSession(%s): %v", cfg.Model, _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, ErrInvalidConfig{Err: err}
	}
	if err := props.Validate(); err != nil {
		return nil, ErrInvalidConfig{Err: err}
	}
	logger.Tracef(ctx, "engine config: %s; stream props: %s", spew.Sdump(cfg), spew.Sdump(props))

	handle, err := backend.Create(ctx, cfg, props)
	if err != nil {
		return nil, ErrInvalidConfig{Err: fmt.Errorf("unable to create an engine instance for model '%s': %w", cfg.Model, err)}
	}

	s := &Session{
		ClosureSignaler: closuresignaler.New(),
		Config:          cfg,
		Props:           props,
		handle:          handle,
		closer:          astikit.NewCloser(),
		state:           StateReady,
	}
	s.closer.AddWithError(func() error {
		handle.Destroy(ctx)
		return nil
	})
	return s, nil
}

func (s *Session) String() string {
	return fmt.Sprintf("Session(%s)", s.Config.Model)
}

// State reports the current lifecycle state.
func (s *Session) State(ctx context.Context) State {
	return xsync.DoR1(ctx, &s.locker, func() State { return s.state })
}

// Submit hands one input frame to the engine. The frame is only borrowed for
// the duration of the call; the caller keeps ownership. A failure is fatal
// for the stream.
func (s *Session) Submit(ctx context.Context, f *astiav.Frame, pts int64) (_err error) {
	logger.Tracef(ctx, "Submit(pts: %d)", pts)
	defer func() { logger.Tracef(ctx, "/Submit(pts: %d): %v", pts, _err) }()
	return xsync.DoA3R1(ctx, &s.locker, s.submit, ctx, f, pts)
}

func (s *Session) submit(ctx context.Context, f *astiav.Frame, pts int64) error {
	if s.state == StateClosed {
		return ErrSessionClosed{}
	}
	if s.state != StateReady && s.state != StateDraining {
		return ErrProcessingFailed{Err: fmt.Errorf("submit in state '%s'", s.state)}
	}
	if err := s.handle.Submit(ctx, f, pts); err != nil {
		return ErrProcessingFailed{Err: err}
	}
	return nil
}

// TryEmit polls for a ready output frame without blocking. When ok is true,
// dst contains the frame and pts its engine-computed timestamp.
func (s *Session) TryEmit(ctx context.Context, dst *astiav.Frame) (_pts int64, _ok bool, _err error) {
	logger.Tracef(ctx, "TryEmit")
	defer func() { logger.Tracef(ctx, "/TryEmit: pts:%d ok:%t err:%v", _pts, _ok, _err) }()
	s.locker.Do(ctx, func() {
		_pts, _ok, _err = s.tryEmit(ctx, dst)
	})
	return
}

func (s *Session) tryEmit(ctx context.Context, dst *astiav.Frame) (int64, bool, error) {
	if s.state == StateClosed {
		return 0, false, ErrSessionClosed{}
	}
	if s.state != StateReady && s.state != StateDraining {
		return 0, false, ErrProcessingFailed{Err: fmt.Errorf("tryEmit in state '%s'", s.state)}
	}
	pts, ok, err := s.handle.TryEmit(ctx, dst)
	if err != nil {
		return 0, false, ErrProcessingFailed{Err: err}
	}
	return pts, ok, nil
}

// SignalEnd marks that no further Submit calls will occur; the engine flushes
// whatever look-ahead state it needs to finish the in-flight frames.
// Draining completes when PendingCount reaches zero; the session itself stays
// alive until Close.
func (s *Session) SignalEnd(ctx context.Context) {
	logger.Debugf(ctx, "SignalEnd")
	defer logger.Debugf(ctx, "/SignalEnd")
	s.locker.Do(ctx, func() {
		if s.state != StateReady {
			logger.Debugf(ctx, "SignalEnd in state '%s': nothing to do", s.state)
			return
		}
		s.state = StateDraining
		s.handle.SignalEnd(ctx)
	})
}

// PendingCount reports the number of submitted-but-unresolved frames; it
// drives the drain loop after SignalEnd.
func (s *Session) PendingCount(ctx context.Context) int {
	return xsync.DoA1R1(ctx, &s.locker, s.handle.PendingCount, ctx)
}

// Wait blocks for the given duration to let the engine make progress.
func (s *Session) Wait(d time.Duration) {
	s.handle.Wait(d)
}

// OutputSize reports the output geometry decided by the engine, for engines
// that decide it themselves (see OutputSizer). ok is false otherwise.
func (s *Session) OutputSize() (width, height int, ok bool) {
	sizer, ok := s.handle.(OutputSizer)
	if !ok {
		return 0, 0, false
	}
	width, height = sizer.OutputSize()
	return width, height, true
}

// Close tears the engine instance down. It is idempotent and unconditional:
// any residual backlog is dropped silently.
func (s *Session) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()
	if s.ClosureSignaler.IsClosed() {
		return nil
	}
	s.ClosureSignaler.Close(ctx)
	return xsync.DoR1(ctx, &s.locker, func() error {
		s.state = StateClosed
		return s.closer.Close()
	})
}
