package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/engine/enginetest"
	"github.com/xaionaro-go/avengine/frame"
)

func TestFlushForwardsTail(t *testing.T) {
	ctx := context.Background()

	// the engine buffers everything until the end-of-stream signal
	handle := &enginetest.Handle{
		SubmitFn: func(ctx context.Context, f *astiav.Frame, pts int64) error {
			return nil
		},
	}
	p, _ := newTestProcessor(t, ModeSynthesis, handle, DrainConfig{
		PollInterval:  time.Millisecond,
		MaxStallPolls: 3,
	})
	defer p.Close(ctx)
	p.OutputFrameDuration = 1500

	outCh := make(chan frame.Output, 16)
	require.NoError(t, p.SendInputFrame(ctx, newInputFrame(0, 3000), outCh))
	require.Empty(t, collectOutputs(outCh))
	require.True(t, p.IsDirty(ctx))

	// the end-of-stream signal releases the buffered tail
	handle.SubmitFn = nil
	handle.ReadyPTS = []int64{0, 1500, 2500}
	require.NoError(t, p.Flush(ctx, outCh))

	outputs := collectOutputs(outCh)
	defer releaseOutputs(outputs)
	require.Len(t, outputs, 3)
	expectedPTSs := []int64{0, 1500, 2500}
	// the final segment is clamped to the retained input frame's end
	expectedDurations := []int64{1500, 1500, 500}
	for i, out := range outputs {
		require.Equal(t, expectedPTSs[i], out.GetPTS())
		require.Equal(t, expectedDurations[i], out.GetDuration())
	}

	require.Equal(t, 1, handle.SignalEndCallCount)
	require.False(t, p.IsDirty(ctx))
}

func TestFlushTimesOut(t *testing.T) {
	ctx := context.Background()

	// a stuck engine: the backlog never shrinks, nothing ever gets ready
	handle := &enginetest.Handle{
		PendingCountFn: func(ctx context.Context) int { return 3 },
		TryEmitFn: func(ctx context.Context, dst *astiav.Frame) (int64, bool, error) {
			return 0, false, nil
		},
	}
	p, _ := newTestProcessor(t, ModeSynthesis, handle, DrainConfig{
		PollInterval:  time.Millisecond,
		MaxStallPolls: 3,
	})
	defer p.Close(ctx)

	outCh := make(chan frame.Output, 16)
	require.NoError(t, p.SendInputFrame(ctx, newInputFrame(0, 3000), outCh))

	err := p.Flush(ctx, outCh)
	var drainErr engine.ErrDrainTimedOut
	require.ErrorAs(t, err, &drainErr)
	require.Equal(t, 3, drainErr.Pending)
	require.NotZero(t, handle.WaitCallCount)
}

func TestFlushDiscardsForAnnotation(t *testing.T) {
	ctx := context.Background()
	p, backend := newTestProcessor(t, ModeAnnotation, nil, DrainConfig{
		PollInterval:  time.Millisecond,
		MaxStallPolls: 3,
	})
	defer p.Close(ctx)

	outCh := make(chan frame.Output, 16)
	require.NoError(t, p.SendInputFrame(ctx, newInputFrame(0, 3000), outCh))
	outputs := collectOutputs(outCh)
	require.Len(t, outputs, 1)
	releaseOutputs(outputs)

	// whatever the engine still resolves at end-of-stream stays internal
	backend.Handle.ReadyPTS = []int64{0, 1500}
	require.NoError(t, p.Flush(ctx, outCh))
	require.Empty(t, collectOutputs(outCh))
	require.Equal(t, 1, backend.Handle.SignalEndCallCount)
}

func TestFlushWithoutSession(t *testing.T) {
	ctx := context.Background()
	p := NewEngineProcessor(ModeSynthesis, &enginetest.Backend{}, DrainConfig{})
	defer p.Close(ctx)

	outCh := make(chan frame.Output, 1)
	require.NoError(t, p.Flush(ctx, outCh))
	require.False(t, p.IsDirty(ctx))
}
