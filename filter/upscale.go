package filter

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/kernel"
	"github.com/xaionaro-go/avengine/logger"
)

const (
	UpscaleMaxScale = 4
)

// UpscaleOptions configures the upscaling filter.
type UpscaleOptions struct {
	// Model is the upscaling model's short name.
	Model string

	// Scale is the geometry multiplier (1, 2 or 4); 0 means estimate it
	// from TargetWidth/TargetHeight.
	Scale int

	// TargetWidth/TargetHeight drive the scale estimation when Scale is 0.
	TargetWidth  int
	TargetHeight int

	Device          int
	ExtraInstances  int
	MemoryFraction  float64
	DownloadAllowed bool

	// EstimateFrameCount enables auto parameter estimation over the first N
	// frames; 0 disables it.
	EstimateFrameCount int

	// Enhancement parameters, all relative to the input video, in [-1, 1]
	// unless noted otherwise.
	PreBlur     float64
	Noise       float64
	Details     float64
	Halo        float64
	Blur        float64
	Compression float64
	PreNoise    float64 // [0, 0.1]
	Grain       float64 // [0, 0.1]
	GrainSize   float64 // [0, 5]
	KeepColor   bool
	Blend       float64 // [0, 1]

	Drain kernel.DrainConfig
}

func (opts *UpscaleOptions) setDefaults() {
	if opts.Model == "" {
		opts.Model = "amq-13"
	}
	if opts.MemoryFraction == 0 {
		opts.MemoryFraction = 1
	}
}

func (opts UpscaleOptions) validate() error {
	if opts.Scale < 0 || opts.Scale > UpscaleMaxScale || opts.Scale == 3 {
		return fmt.Errorf("invalid scale %d: expected 0 (auto), 1, 2 or 4", opts.Scale)
	}
	if opts.Scale == 0 && opts.TargetWidth <= 0 && opts.TargetHeight <= 0 {
		return fmt.Errorf("scale estimation requested but no target geometry given")
	}
	return nil
}

// estimateScale picks the smallest model scale that covers the requested
// output geometry.
func (opts UpscaleOptions) estimateScale(inWidth, inHeight int) int {
	x := float64(opts.TargetWidth) / float64(inWidth)
	y := float64(opts.TargetHeight) / float64(inHeight)
	v := x
	if y > v {
		v = y
	}
	switch {
	case v > 2.4:
		return 4
	case v > 1.2:
		return 2
	default:
		return 1
	}
}

// Upscale scales the stream geometry up using an enhancement model. Like the
// retiming filter it buffers: the engine may hold a few frames of look-ahead
// before emitting.
type Upscale struct {
	*kernel.EngineProcessor
	Options UpscaleOptions

	// Scale is the effective geometry multiplier, resolved at Configure.
	Scale int
}

func NewUpscale(
	ctx context.Context,
	backend engine.Backend,
	opts UpscaleOptions,
) (*Upscale, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, engine.ErrInvalidConfig{Err: err}
	}
	return &Upscale{
		EngineProcessor: kernel.NewEngineProcessor(kernel.ModeSynthesis, backend, opts.Drain),
		Options:         opts,
	}, nil
}

func (f *Upscale) String() string {
	return fmt.Sprintf("Upscale(%s)", f.Options.Model)
}

func (f *Upscale) Configure(
	ctx context.Context,
	props engine.StreamProps,
) (_err error) {
	logger.Debugf(ctx, "Configure(%dx%d)", props.Width, props.Height)
	defer func() { logger.Debugf(ctx, "/Configure(%dx%d): %v", props.Width, props.Height, _err) }()

	f.Scale = f.Options.Scale
	if f.Scale == 0 {
		f.Scale = f.Options.estimateScale(props.Width, props.Height)
		logger.Debugf(ctx, "estimated scale: %d (target: %dx%d)", f.Scale, f.Options.TargetWidth, f.Options.TargetHeight)
	}

	keepColor := 0.0
	if f.Options.KeepColor {
		keepColor = 1
	}
	estimateMarker := 0.0
	if f.Options.EstimateFrameCount > 0 {
		estimateMarker = float64(f.Options.EstimateFrameCount)
	}

	props.Scale = f.Scale
	f.EngineProcessor.OutputFrameDuration = nominalFrameDuration(props.FrameRate, props.TimeBase)
	return f.EngineProcessor.Configure(ctx, engine.Config{
		Model:           f.Options.Model,
		Device:          f.Options.Device,
		ExtraInstances:  f.Options.ExtraInstances,
		MemoryFraction:  f.Options.MemoryFraction,
		DownloadAllowed: f.Options.DownloadAllowed,
		Parameters: []float64{
			f.Options.PreBlur, f.Options.Noise, f.Options.Details,
			f.Options.Halo, f.Options.Blur, f.Options.Compression,
			estimateMarker, f.Options.PreNoise, f.Options.Grain,
			f.Options.GrainSize, keepColor, f.Options.Blend,
		},
	}, props)
}

// OutputGeometry is the geometry of the frames this filter emits. Valid only
// after Configure.
func (f *Upscale) OutputGeometry(props engine.StreamProps) (width, height int) {
	return props.Width * f.Scale, props.Height * f.Scale
}
