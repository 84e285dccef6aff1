package filter

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/kernel"
	"github.com/xaionaro-go/avengine/logger"
)

// CameraPoseEstimationOptions configures the pass-through annotation filter.
type CameraPoseEstimationOptions struct {
	// Model is the pose-estimation model's short name.
	Model string

	// OutputPath is where the engine writes the per-frame pose data. The
	// adapter only passes the path along, it never touches the file.
	OutputPath string

	Device          int
	DownloadAllowed bool

	Drain kernel.DrainConfig
}

func (opts *CameraPoseEstimationOptions) setDefaults() {
	if opts.Model == "" {
		opts.Model = "cpe-1"
	}
	if opts.OutputPath == "" {
		opts.OutputPath = "cpe.json"
	}
}

// CameraPoseEstimation forwards every input frame unchanged; the engine's
// results leave through the side-channel file instead.
type CameraPoseEstimation struct {
	*kernel.EngineProcessor
	Options CameraPoseEstimationOptions
}

func NewCameraPoseEstimation(
	ctx context.Context,
	backend engine.Backend,
	opts CameraPoseEstimationOptions,
) (*CameraPoseEstimation, error) {
	opts.setDefaults()
	return &CameraPoseEstimation{
		EngineProcessor: kernel.NewEngineProcessor(kernel.ModeAnnotation, backend, opts.Drain),
		Options:         opts,
	}, nil
}

func (f *CameraPoseEstimation) String() string {
	return fmt.Sprintf("CameraPoseEstimation(%s)", f.Options.Model)
}

func (f *CameraPoseEstimation) Configure(
	ctx context.Context,
	props engine.StreamProps,
) (_err error) {
	logger.Debugf(ctx, "Configure")
	defer func() { logger.Debugf(ctx, "/Configure: %v", _err) }()

	// the first-generation pose model does not apply rolling-shutter
	// correction, every later one does
	rollingShutter := 0.0
	if f.Options.Model != "cpe-1" {
		rollingShutter = 1.0
	}

	props.Scale = 1
	return f.EngineProcessor.Configure(ctx, engine.Config{
		Model:           f.Options.Model,
		Device:          f.Options.Device,
		MemoryFraction:  1,
		DownloadAllowed: f.Options.DownloadAllowed,
		Parameters:      []float64{rollingShutter},
		Options:         []string{f.Options.OutputPath},
	}, props)
}
