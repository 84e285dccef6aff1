package filter

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/kernel"
	"github.com/xaionaro-go/avengine/logger"
	"github.com/xaionaro-go/avengine/retime"
	"github.com/xaionaro-go/typing"
)

const (
	// DuplicateThresholdMin..Max bound the duplicate-suppression score;
	// zero or below disables the suppression entirely.
	DuplicateThresholdMin = -0.01
	DuplicateThresholdMax = 0.2

	SlowMotionFactorMin = 0.1
	SlowMotionFactorMax = 16.0
)

// FrameInterpolationOptions configures the retiming filter.
type FrameInterpolationOptions struct {
	// Model is the interpolation model's short name.
	Model string

	Device          int
	ExtraInstances  int
	MemoryFraction  float64
	DownloadAllowed bool

	// SlowMotionFactor stretches the timeline; 1 keeps the original speed.
	SlowMotionFactor float64

	// DuplicateThreshold is the similarity score above which a synthesized
	// frame is suppressed as a near-duplicate; ≤0 disables the suppression,
	// higher values detect more duplicates.
	DuplicateThreshold float64

	// TargetFrameRate is the requested output frame rate; when unset the
	// output frame rate equals the input frame rate.
	TargetFrameRate typing.Optional[astiav.Rational]

	Drain kernel.DrainConfig
}

func (opts *FrameInterpolationOptions) setDefaults() {
	if opts.Model == "" {
		opts.Model = "chr-1"
	}
	if opts.SlowMotionFactor == 0 {
		opts.SlowMotionFactor = 1
	}
	if opts.MemoryFraction == 0 {
		opts.MemoryFraction = 1
	}
}

func (opts FrameInterpolationOptions) validate() error {
	if opts.SlowMotionFactor < SlowMotionFactorMin || opts.SlowMotionFactor > SlowMotionFactorMax {
		return fmt.Errorf("invalid slow-motion factor %f: expected a value in [%v, %v]", opts.SlowMotionFactor, SlowMotionFactorMin, SlowMotionFactorMax)
	}
	if opts.DuplicateThreshold < DuplicateThresholdMin || opts.DuplicateThreshold > DuplicateThresholdMax {
		return fmt.Errorf("invalid duplicate threshold %f: expected a value in [%v, %v]", opts.DuplicateThreshold, DuplicateThresholdMin, DuplicateThresholdMax)
	}
	return nil
}

// FrameInterpolation is the frame-rate-changing synthesis filter: one input
// frame resolves into zero, one or many retimed output frames.
type FrameInterpolation struct {
	*kernel.EngineProcessor
	Options FrameInterpolationOptions

	// Policy is computed once, when the stream is configured.
	Policy retime.Policy
}

func NewFrameInterpolation(
	ctx context.Context,
	backend engine.Backend,
	opts FrameInterpolationOptions,
) (*FrameInterpolation, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, engine.ErrInvalidConfig{Err: err}
	}
	return &FrameInterpolation{
		EngineProcessor: kernel.NewEngineProcessor(kernel.ModeSynthesis, backend, opts.Drain),
		Options:         opts,
	}, nil
}

func (f *FrameInterpolation) String() string {
	return fmt.Sprintf("FrameInterpolation(%s)", f.Options.Model)
}

// Configure computes the retiming policy from the now-known stream
// properties and instantiates the engine. The four derived parameters are
// frozen from here on.
func (f *FrameInterpolation) Configure(
	ctx context.Context,
	props engine.StreamProps,
) (_err error) {
	logger.Debugf(ctx, "Configure(%v)", props.FrameRate)
	defer func() { logger.Debugf(ctx, "/Configure(%v): %v", props.FrameRate, _err) }()

	f.Policy = retime.Calc(
		props.FrameRate,
		f.Options.TargetFrameRate,
		f.Options.SlowMotionFactor,
		f.Options.DuplicateThreshold,
	)
	logger.Debugf(ctx, "retiming policy: %v", f.Policy)

	props.Scale = 1
	f.EngineProcessor.OutputFrameDuration = nominalFrameDuration(f.Policy.OutputFrameRate, props.TimeBase)
	return f.EngineProcessor.Configure(ctx, engine.Config{
		Model:           f.Options.Model,
		Device:          f.Options.Device,
		ExtraInstances:  f.Options.ExtraInstances,
		MemoryFraction:  f.Options.MemoryFraction,
		DownloadAllowed: f.Options.DownloadAllowed,
		Parameters:      f.Policy.ParametersVector(),
	}, props)
}

// OutputFrameRate is the frame rate the output pad should advertise. Valid
// only after Configure.
func (f *FrameInterpolation) OutputFrameRate() astiav.Rational {
	return f.Policy.OutputFrameRate
}
