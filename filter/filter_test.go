package filter

import (
	"context"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/engine/enginetest"
	"github.com/xaionaro-go/typing"
)

func testStreamProps() engine.StreamProps {
	return engine.StreamProps{
		Width:     1280,
		Height:    720,
		TimeBase:  astiav.NewRational(1, 90000),
		FrameRate: astiav.NewRational(24, 1),
		Scale:     1,
	}
}

// capturingBackend records the engine configuration the filter ends up
// requesting.
func capturingBackend() (*enginetest.Backend, *engine.Config, *engine.StreamProps) {
	var cfg engine.Config
	var props engine.StreamProps
	handle := &enginetest.Handle{}
	backend := &enginetest.Backend{
		CreateFn: func(ctx context.Context, c engine.Config, p engine.StreamProps) (engine.BackendHandle, error) {
			cfg = c
			props = p
			return handle, nil
		},
	}
	return backend, &cfg, &props
}

func TestNominalFrameDuration(t *testing.T) {
	require.Equal(t, int64(3750),
		nominalFrameDuration(astiav.NewRational(24, 1), astiav.NewRational(1, 90000)))
	require.Equal(t, int64(1500),
		nominalFrameDuration(astiav.NewRational(60, 1), astiav.NewRational(1, 90000)))
	require.Equal(t, int64(3003),
		nominalFrameDuration(astiav.NewRational(30000, 1001), astiav.NewRational(1, 90000)))
}

func TestFrameInterpolationOptionValidation(t *testing.T) {
	ctx := context.Background()
	backend := &enginetest.Backend{}

	t.Run("slow motion out of range", func(t *testing.T) {
		_, err := NewFrameInterpolation(ctx, backend, FrameInterpolationOptions{
			SlowMotionFactor: 32,
		})
		require.ErrorAs(t, err, &engine.ErrInvalidConfig{})
	})

	t.Run("duplicate threshold out of range", func(t *testing.T) {
		_, err := NewFrameInterpolation(ctx, backend, FrameInterpolationOptions{
			DuplicateThreshold: 0.5,
		})
		require.ErrorAs(t, err, &engine.ErrInvalidConfig{})
	})

	t.Run("defaults", func(t *testing.T) {
		f, err := NewFrameInterpolation(ctx, backend, FrameInterpolationOptions{})
		require.NoError(t, err)
		defer f.Close(ctx)
		require.Equal(t, "chr-1", f.Options.Model)
		require.Equal(t, float64(1), f.Options.SlowMotionFactor)
	})
}

func TestFrameInterpolationConfigure(t *testing.T) {
	ctx := context.Background()
	backend, cfg, props := capturingBackend()

	f, err := NewFrameInterpolation(ctx, backend, FrameInterpolationOptions{
		TargetFrameRate: typing.Opt(astiav.NewRational(60, 1)),
	})
	require.NoError(t, err)
	defer f.Close(ctx)

	require.NoError(t, f.Configure(ctx, testStreamProps()))

	require.Equal(t, astiav.NewRational(60, 1), f.OutputFrameRate())
	require.InDelta(t, 2.5, f.Policy.PacingFactor, 1e-9)
	require.Equal(t, f.Policy.ParametersVector(), cfg.Parameters)
	require.Equal(t, 1, props.Scale)
	require.Equal(t, int64(1500), f.EngineProcessor.OutputFrameDuration)
}

func TestCameraPoseEstimationConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("first generation model", func(t *testing.T) {
		backend, cfg, _ := capturingBackend()
		f, err := NewCameraPoseEstimation(ctx, backend, CameraPoseEstimationOptions{})
		require.NoError(t, err)
		defer f.Close(ctx)
		require.NoError(t, f.Configure(ctx, testStreamProps()))
		require.Equal(t, "cpe-1", cfg.Model)
		require.Equal(t, []float64{0}, cfg.Parameters)
		require.Equal(t, []string{"cpe.json"}, cfg.Options)
	})

	t.Run("later models correct rolling shutter", func(t *testing.T) {
		backend, cfg, _ := capturingBackend()
		f, err := NewCameraPoseEstimation(ctx, backend, CameraPoseEstimationOptions{
			Model:      "cpe-2",
			OutputPath: "poses.json",
		})
		require.NoError(t, err)
		defer f.Close(ctx)
		require.NoError(t, f.Configure(ctx, testStreamProps()))
		require.Equal(t, []float64{1}, cfg.Parameters)
		require.Equal(t, []string{"poses.json"}, cfg.Options)
	})
}

func TestUpscaleOptionValidation(t *testing.T) {
	ctx := context.Background()
	backend := &enginetest.Backend{}

	t.Run("scale 3 does not exist", func(t *testing.T) {
		_, err := NewUpscale(ctx, backend, UpscaleOptions{Scale: 3})
		require.ErrorAs(t, err, &engine.ErrInvalidConfig{})
	})

	t.Run("auto scale needs a target geometry", func(t *testing.T) {
		_, err := NewUpscale(ctx, backend, UpscaleOptions{Scale: 0})
		require.ErrorAs(t, err, &engine.ErrInvalidConfig{})
	})
}

func TestUpscaleScaleEstimation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		targetWidth   int
		targetHeight  int
		expectedScale int
	}{
		{name: "720p to 1080p", targetWidth: 1920, targetHeight: 1080, expectedScale: 2},
		{name: "720p to 4k", targetWidth: 3840, targetHeight: 2160, expectedScale: 4},
		{name: "same size", targetWidth: 1280, targetHeight: 720, expectedScale: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, _, props := capturingBackend()
			f, err := NewUpscale(ctx, backend, UpscaleOptions{
				TargetWidth:  tt.targetWidth,
				TargetHeight: tt.targetHeight,
			})
			require.NoError(t, err)
			defer f.Close(ctx)
			require.NoError(t, f.Configure(ctx, testStreamProps()))
			require.Equal(t, tt.expectedScale, f.Scale)
			require.Equal(t, tt.expectedScale, props.Scale)
			require.Equal(t, 1280*tt.expectedScale, props.OutputWidth())
		})
	}
}

func TestStabilizationConfigure(t *testing.T) {
	ctx := context.Background()
	backend, cfg, _ := capturingBackend()

	f, err := NewStabilization(ctx, backend, StabilizationOptions{
		FullFrame:  true,
		PostFlight: true,
	})
	require.NoError(t, err)
	defer f.Close(ctx)
	require.NoError(t, f.Configure(ctx, testStreamProps()))

	require.Equal(t, "ref-2", cfg.Model)
	require.Len(t, cfg.Parameters, 11)
	require.Equal(t, float64(6), cfg.Parameters[0])  // smoothness
	require.Equal(t, float64(64), cfg.Parameters[1]) // window size
	require.Equal(t, float64(1), cfg.Parameters[2])  // post-flight
	require.Equal(t, []string{"cpe.json"}, cfg.Options)

	// full-frame mode keeps the input geometry
	require.Equal(t, 1280, f.OutputWidth)
	require.Equal(t, 720, f.OutputHeight)
}
