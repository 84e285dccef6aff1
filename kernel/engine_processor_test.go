package kernel

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/engine/enginetest"
	"github.com/xaionaro-go/avengine/frame"
)

const testTimeBaseDen = 90000

func testStreamProps() engine.StreamProps {
	return engine.StreamProps{
		Width:     320,
		Height:    240,
		TimeBase:  astiav.NewRational(1, testTimeBaseDen),
		FrameRate: astiav.NewRational(30, 1),
		Scale:     1,
	}
}

func newTestProcessor(
	t *testing.T,
	mode Mode,
	handle *enginetest.Handle,
	drainCfg DrainConfig,
) (*EngineProcessor, *enginetest.Backend) {
	ctx := context.Background()
	backend := &enginetest.Backend{Handle: handle}
	p := NewEngineProcessor(mode, backend, drainCfg)
	require.NoError(t, p.Configure(ctx, engine.Config{
		Model:          "chr-1",
		MemoryFraction: 1,
	}, testStreamProps()))
	return p, backend
}

func newInputFrame(pts int64, duration int64) frame.Input {
	f := frame.Pool.Get()
	f.SetPts(pts)
	return frame.BuildInput(f, astiav.NewRational(1, testTimeBaseDen), 0, duration)
}

func collectOutputs(outCh chan frame.Output) []frame.Output {
	var result []frame.Output
	for {
		select {
		case out := <-outCh:
			result = append(result, out)
		default:
			return result
		}
	}
}

func releaseOutputs(outputs []frame.Output) {
	for _, out := range outputs {
		frame.Pool.Put(out.Frame)
	}
}

func TestEngineProcessorEcho(t *testing.T) {
	ctx := context.Background()
	p, backend := newTestProcessor(t, ModeEstimation, nil, DrainConfig{})
	defer p.Close(ctx)

	outCh := make(chan frame.Output, 16)
	inputPTSs := []int64{0, 3000, 6000}
	for _, pts := range inputPTSs {
		require.NoError(t, p.SendInputFrame(ctx, newInputFrame(pts, 3000), outCh))
	}

	outputs := collectOutputs(outCh)
	defer releaseOutputs(outputs)
	require.Len(t, outputs, len(inputPTSs))
	for i, out := range outputs {
		require.Equal(t, inputPTSs[i], out.GetPTS())
		require.Equal(t, int64(3000), out.GetDuration())
	}

	// estimation mode never pumps mid-stream
	require.Equal(t, 0, backend.Handle.TryEmitCallCount)
	require.Equal(t, len(inputPTSs), backend.Handle.SubmitCallCount)
	require.Equal(t, uint64(len(inputPTSs)), p.FramesSubmitted.Load())
}

func TestEngineProcessorAnnotationDiscardsEngineOutput(t *testing.T) {
	ctx := context.Background()
	p, backend := newTestProcessor(t, ModeAnnotation, nil, DrainConfig{})
	defer p.Close(ctx)

	outCh := make(chan frame.Output, 16)
	require.NoError(t, p.SendInputFrame(ctx, newInputFrame(0, 3000), outCh))
	require.NoError(t, p.SendInputFrame(ctx, newInputFrame(3000, 3000), outCh))

	// only the echoed input frames go downstream
	outputs := collectOutputs(outCh)
	defer releaseOutputs(outputs)
	require.Len(t, outputs, 2)
	require.Equal(t, int64(0), outputs[0].GetPTS())
	require.Equal(t, int64(3000), outputs[1].GetPTS())

	// the engine's outputs were pumped and discarded
	require.NotZero(t, backend.Handle.TryEmitCallCount)
	require.Zero(t, backend.Handle.PendingCount(ctx))
}

func TestEngineProcessorSynthesis(t *testing.T) {
	ctx := context.Background()

	t.Run("one output per input", func(t *testing.T) {
		p, _ := newTestProcessor(t, ModeSynthesis, nil, DrainConfig{})
		defer p.Close(ctx)
		p.OutputFrameDuration = 3000

		outCh := make(chan frame.Output, 16)
		require.NoError(t, p.SendInputFrame(ctx, newInputFrame(0, 3000), outCh))
		require.NoError(t, p.SendInputFrame(ctx, newInputFrame(3000, 3000), outCh))

		outputs := collectOutputs(outCh)
		defer releaseOutputs(outputs)
		require.Len(t, outputs, 2)
		require.Equal(t, int64(0), outputs[0].GetPTS())
		require.Equal(t, int64(3000), outputs[1].GetPTS())
		require.Equal(t, int64(3000), outputs[0].GetDuration())
	})

	t.Run("many outputs per input", func(t *testing.T) {
		handle := &enginetest.Handle{}
		handle.SubmitFn = func(ctx context.Context, f *astiav.Frame, pts int64) error {
			// the engine retimes: each input resolves into two outputs
			handle.ReadyPTS = append(handle.ReadyPTS, pts, pts+1500)
			return nil
		}
		p, _ := newTestProcessor(t, ModeSynthesis, handle, DrainConfig{})
		defer p.Close(ctx)
		p.OutputFrameDuration = 1500

		outCh := make(chan frame.Output, 16)
		require.NoError(t, p.SendInputFrame(ctx, newInputFrame(0, 3000), outCh))
		require.NoError(t, p.SendInputFrame(ctx, newInputFrame(3000, 3000), outCh))

		outputs := collectOutputs(outCh)
		defer releaseOutputs(outputs)
		require.Len(t, outputs, 4)
		expectedPTSs := []int64{0, 1500, 3000, 4500}
		for i, out := range outputs {
			require.Equal(t, expectedPTSs[i], out.GetPTS())
			require.Equal(t, int64(1500), out.GetDuration())
		}
		require.Equal(t, uint64(4), p.FramesEmitted.Load())
	})

	t.Run("negative timestamps are dropped", func(t *testing.T) {
		handle := &enginetest.Handle{}
		handle.SubmitFn = func(ctx context.Context, f *astiav.Frame, pts int64) error {
			handle.ReadyPTS = append(handle.ReadyPTS, -1, pts)
			return nil
		}
		p, _ := newTestProcessor(t, ModeSynthesis, handle, DrainConfig{})
		defer p.Close(ctx)
		p.OutputFrameDuration = 3000

		outCh := make(chan frame.Output, 16)
		require.NoError(t, p.SendInputFrame(ctx, newInputFrame(0, 3000), outCh))

		outputs := collectOutputs(outCh)
		defer releaseOutputs(outputs)
		require.Len(t, outputs, 1)
		require.Equal(t, int64(0), outputs[0].GetPTS())
	})
}

func TestEngineProcessorSubmitFailure(t *testing.T) {
	ctx := context.Background()
	handle := &enginetest.Handle{}
	handle.SubmitFn = func(ctx context.Context, f *astiav.Frame, pts int64) error {
		if handle.SubmitCallCount == 5 {
			return fmt.Errorf("the engine gave up")
		}
		handle.ReadyPTS = append(handle.ReadyPTS, pts)
		return nil
	}
	p, _ := newTestProcessor(t, ModeSynthesis, handle, DrainConfig{})
	defer p.Close(ctx)
	p.OutputFrameDuration = 3000

	outCh := make(chan frame.Output, 16)
	var err error
	sent := 0
	for i := 0; i < 10; i++ {
		err = p.SendInputFrame(ctx, newInputFrame(int64(i)*3000, 3000), outCh)
		if err != nil {
			break
		}
		sent++
	}

	require.Equal(t, 4, sent)
	require.ErrorAs(t, err, &engine.ErrProcessingFailed{})

	outputs := collectOutputs(outCh)
	defer releaseOutputs(outputs)
	require.Len(t, outputs, 4)
}

func TestEngineProcessorClosed(t *testing.T) {
	ctx := context.Background()
	p, backend := newTestProcessor(t, ModeSynthesis, nil, DrainConfig{})
	require.NoError(t, p.Close(ctx))
	require.Equal(t, 1, backend.Handle.DestroyCallCount)

	outCh := make(chan frame.Output, 1)
	in := newInputFrame(0, 3000)
	err := p.SendInputFrame(ctx, in, outCh)
	require.ErrorIs(t, err, io.ErrClosedPipe)
	frame.Pool.Put(in.Frame)

	// Close is idempotent
	require.NoError(t, p.Close(ctx))
	require.Equal(t, 1, backend.Handle.DestroyCallCount)
}

func TestEngineProcessorUnconfigured(t *testing.T) {
	ctx := context.Background()
	p := NewEngineProcessor(ModeSynthesis, &enginetest.Backend{}, DrainConfig{})
	defer p.Close(ctx)

	outCh := make(chan frame.Output, 1)
	err := p.SendInputFrame(ctx, newInputFrame(0, 3000), outCh)
	require.Error(t, err)
}
