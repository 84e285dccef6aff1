package engine_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/engine/enginetest"
)

func testStreamProps() engine.StreamProps {
	return engine.StreamProps{
		Width:     320,
		Height:    240,
		TimeBase:  astiav.NewRational(1, 90000),
		FrameRate: astiav.NewRational(30, 1),
		Scale:     1,
	}
}

func TestNewSessionInvalidConfig(t *testing.T) {
	ctx := context.Background()
	backend := &enginetest.Backend{}

	t.Run("empty model", func(t *testing.T) {
		_, err := engine.NewSession(ctx, backend, engine.Config{}, testStreamProps())
		require.ErrorAs(t, err, &engine.ErrInvalidConfig{})
	})

	t.Run("device out of range", func(t *testing.T) {
		_, err := engine.NewSession(ctx, backend, engine.Config{
			Model:          "chr-1",
			Device:         engine.DeviceMaxGPUIndex + 1,
			MemoryFraction: 1,
		}, testStreamProps())
		require.ErrorAs(t, err, &engine.ErrInvalidConfig{})
	})

	t.Run("invalid stream geometry", func(t *testing.T) {
		props := testStreamProps()
		props.Width = 0
		_, err := engine.NewSession(ctx, backend, engine.Config{
			Model:          "chr-1",
			MemoryFraction: 1,
		}, props)
		require.ErrorAs(t, err, &engine.ErrInvalidConfig{})
	})

	// none of the invalid configurations may reach the backend
	require.Equal(t, 0, backend.CreateCallCount)

	t.Run("backend rejection", func(t *testing.T) {
		backend := &enginetest.Backend{
			CreateFn: func(context.Context, engine.Config, engine.StreamProps) (engine.BackendHandle, error) {
				return nil, fmt.Errorf("model file not found")
			},
		}
		_, err := engine.NewSession(ctx, backend, engine.Config{
			Model:          "no-such-model",
			MemoryFraction: 1,
		}, testStreamProps())
		require.ErrorAs(t, err, &engine.ErrInvalidConfig{})
		require.Equal(t, 1, backend.CreateCallCount)
	})
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := &enginetest.Backend{}

	sess, err := engine.NewSession(ctx, backend, engine.Config{
		Model:          "chr-1",
		MemoryFraction: 1,
	}, testStreamProps())
	require.NoError(t, err)
	require.Equal(t, engine.StateReady, sess.State(ctx))

	f := astiav.AllocFrame()
	defer f.Free()

	require.NoError(t, sess.Submit(ctx, f, 0))
	require.NoError(t, sess.Submit(ctx, f, 3000))
	require.Equal(t, 2, sess.PendingCount(ctx))

	dst := astiav.AllocFrame()
	defer dst.Free()
	pts, ok, err := sess.TryEmit(ctx, dst)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(0), pts)

	sess.SignalEnd(ctx)
	require.Equal(t, engine.StateDraining, sess.State(ctx))
	require.Equal(t, 1, backend.Handle.SignalEndCallCount)

	// SignalEnd is idempotent
	sess.SignalEnd(ctx)
	require.Equal(t, 1, backend.Handle.SignalEndCallCount)

	// submitting is still allowed while draining
	require.NoError(t, sess.Submit(ctx, f, 6000))

	require.NoError(t, sess.Close(ctx))
	require.Equal(t, engine.StateClosed, sess.State(ctx))
	require.Equal(t, 1, backend.Handle.DestroyCallCount)

	// Close is idempotent: the engine instance is destroyed exactly once
	require.NoError(t, sess.Close(ctx))
	require.Equal(t, 1, backend.Handle.DestroyCallCount)

	err = sess.Submit(ctx, f, 9000)
	require.ErrorAs(t, err, &engine.ErrSessionClosed{})
	_, _, err = sess.TryEmit(ctx, dst)
	require.ErrorAs(t, err, &engine.ErrSessionClosed{})
}

func TestSessionSubmitFailureIsWrapped(t *testing.T) {
	ctx := context.Background()
	backend := &enginetest.Backend{Handle: &enginetest.Handle{
		SubmitFn: func(context.Context, *astiav.Frame, int64) error {
			return fmt.Errorf("the engine rejected the frame")
		},
	}}

	sess, err := engine.NewSession(ctx, backend, engine.Config{
		Model:          "chr-1",
		MemoryFraction: 1,
	}, testStreamProps())
	require.NoError(t, err)
	defer sess.Close(ctx)

	f := astiav.AllocFrame()
	defer f.Free()
	err = sess.Submit(ctx, f, 0)
	require.ErrorAs(t, err, &engine.ErrProcessingFailed{})
}
