package filter

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/kernel"
	"github.com/xaionaro-go/avengine/logger"
)

// StabilizationOptions configures the stabilization filter. It consumes the
// camera-pose file produced by the annotation filter in an earlier pass.
type StabilizationOptions struct {
	// Model is the stabilization model's short name.
	Model string

	// PoseFilePath is the camera-pose file to stabilize against.
	PoseFilePath string

	// FullFrame selects full-frame synthesis; when false the filter
	// auto-crops and the engine decides the output geometry.
	FullFrame bool

	// Smoothness is how much the camera trajectory is smoothed, in [0, 16].
	Smoothness float64

	// WindowSize is the synthesis window for full-frame mode, in [0, 512].
	WindowSize int

	// CanvasScaleX/Y scale the synthesis canvas relative to the input.
	CanvasScaleX float64
	CanvasScaleY float64

	// CacheSize is the engine-side frame cache, in [0, 256].
	CacheSize int

	// DOF enables stabilization per motion component as four decimal
	// digits: rotation, horizontal pan, vertical pan, zoom.
	DOF int

	// RollingShutter enables rolling-shutter correction.
	RollingShutter bool

	// ReduceMotion dampens motion jitters, in [0, 5].
	ReduceMotion int

	// PostFlight enables the end-of-stream tail synthesis.
	PostFlight bool

	// ReadStartTime/WriteStartTime offset the pose file reads and the
	// output writes, in seconds.
	ReadStartTime  float64
	WriteStartTime float64

	Device          int
	ExtraInstances  int
	MemoryFraction  float64
	DownloadAllowed bool

	Drain kernel.DrainConfig
}

func (opts *StabilizationOptions) setDefaults() {
	if opts.Model == "" {
		opts.Model = "ref-2"
	}
	if opts.PoseFilePath == "" {
		opts.PoseFilePath = "cpe.json"
	}
	if opts.Smoothness == 0 {
		opts.Smoothness = 6
	}
	if opts.WindowSize == 0 {
		opts.WindowSize = 64
	}
	if opts.CanvasScaleX == 0 {
		opts.CanvasScaleX = 2
	}
	if opts.CanvasScaleY == 0 {
		opts.CanvasScaleY = 2
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = 128
	}
	if opts.DOF == 0 {
		opts.DOF = 1111
	}
	if opts.MemoryFraction == 0 {
		opts.MemoryFraction = 1
	}
}

// Stabilization synthesizes a stabilized stream from the input frames and a
// previously estimated camera trajectory.
type Stabilization struct {
	*kernel.EngineProcessor
	Options StabilizationOptions

	// OutputWidth/OutputHeight are resolved at Configure: the input
	// geometry for full-frame mode, the engine's choice for auto-crop.
	OutputWidth  int
	OutputHeight int
}

func NewStabilization(
	ctx context.Context,
	backend engine.Backend,
	opts StabilizationOptions,
) (*Stabilization, error) {
	opts.setDefaults()
	return &Stabilization{
		EngineProcessor: kernel.NewEngineProcessor(kernel.ModeSynthesis, backend, opts.Drain),
		Options:         opts,
	}, nil
}

func (f *Stabilization) String() string {
	return fmt.Sprintf("Stabilization(%s)", f.Options.Model)
}

func (f *Stabilization) Configure(
	ctx context.Context,
	props engine.StreamProps,
) (_err error) {
	logger.Debugf(ctx, "Configure(%dx%d)", props.Width, props.Height)
	defer func() { logger.Debugf(ctx, "/Configure(%dx%d): %v", props.Width, props.Height, _err) }()

	boolParam := func(v bool) float64 {
		if v {
			return 1
		}
		return 0
	}

	props.Scale = 1
	f.EngineProcessor.OutputFrameDuration = nominalFrameDuration(props.FrameRate, props.TimeBase)
	err := f.EngineProcessor.Configure(ctx, engine.Config{
		Model:           f.Options.Model,
		Device:          f.Options.Device,
		ExtraInstances:  f.Options.ExtraInstances,
		MemoryFraction:  f.Options.MemoryFraction,
		DownloadAllowed: f.Options.DownloadAllowed,
		Parameters: []float64{
			f.Options.Smoothness, float64(f.Options.WindowSize),
			boolParam(f.Options.PostFlight),
			f.Options.CanvasScaleX, f.Options.CanvasScaleY,
			float64(f.Options.CacheSize), float64(f.Options.DOF),
			boolParam(f.Options.RollingShutter),
			f.Options.ReadStartTime, f.Options.WriteStartTime,
			float64(f.Options.ReduceMotion),
		},
		Options: []string{f.Options.PoseFilePath},
	}, props)
	if err != nil {
		return err
	}

	f.OutputWidth, f.OutputHeight = props.Width, props.Height
	if !f.Options.FullFrame {
		if w, h, ok := f.EngineProcessor.Session.OutputSize(); ok {
			f.OutputWidth, f.OutputHeight = w, h
			logger.Debugf(ctx, "auto-crop output size: %dx%d", w, h)
		}
	}
	return nil
}
