package filter

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/kernel"
	"github.com/xaionaro-go/avengine/logger"
)

// ParameterEstimationOptions configures the per-frame attribute estimation
// filter.
type ParameterEstimationOptions struct {
	// Model is the estimation model's short name.
	Model string

	Device          int
	DownloadAllowed bool

	Drain kernel.DrainConfig
}

func (opts *ParameterEstimationOptions) setDefaults() {
	if opts.Model == "" {
		opts.Model = "prap-3"
	}
}

// ParameterEstimation forwards every input frame unchanged; the engine is
// consulted for statistics only, which accumulate inside it and surface
// through its own output artifact.
type ParameterEstimation struct {
	*kernel.EngineProcessor
	Options ParameterEstimationOptions
}

func NewParameterEstimation(
	ctx context.Context,
	backend engine.Backend,
	opts ParameterEstimationOptions,
) (*ParameterEstimation, error) {
	opts.setDefaults()
	return &ParameterEstimation{
		EngineProcessor: kernel.NewEngineProcessor(kernel.ModeEstimation, backend, opts.Drain),
		Options:         opts,
	}, nil
}

func (f *ParameterEstimation) String() string {
	return fmt.Sprintf("ParameterEstimation(%s)", f.Options.Model)
}

func (f *ParameterEstimation) Configure(
	ctx context.Context,
	props engine.StreamProps,
) (_err error) {
	logger.Debugf(ctx, "Configure")
	defer func() { logger.Debugf(ctx, "/Configure: %v", _err) }()

	props.Scale = 1
	return f.EngineProcessor.Configure(ctx, engine.Config{
		Model:           f.Options.Model,
		Device:          f.Options.Device,
		MemoryFraction:  1,
		DownloadAllowed: f.Options.DownloadAllowed,
	}, props)
}
