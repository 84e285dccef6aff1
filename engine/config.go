package engine

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

const (
	// DeviceAuto lets the engine pick a device.
	DeviceAuto = -2
	// DeviceCPU forces CPU processing.
	DeviceCPU = -1
	// DeviceMaxGPUIndex is the highest addressable GPU index.
	DeviceMaxGPUIndex = 8

	// MaxExtraInstances is the maximum number of extra model instances that
	// may run on the same device.
	MaxExtraInstances = 3
)

// Config describes one engine instance. It is immutable once the Session is
// created.
type Config struct {
	// Model is the short model identifier, e.g. "chr-1".
	Model string

	// Device selects where to run: DeviceAuto, DeviceCPU or a GPU index.
	Device int

	// ExtraInstances is the number of extra model instances on the device.
	ExtraInstances int

	// MemoryFraction limits the engine to this fraction of device memory.
	MemoryFraction float64

	// DownloadAllowed permits fetching model weights that are absent locally.
	DownloadAllowed bool

	// Parameters is the mode-specific parameter vector, in the order the
	// model expects it.
	Parameters []float64

	// Options carries side-channel string options, e.g. the path the
	// annotation models write their per-frame data to.
	Options []string
}

func (cfg Config) Validate() error {
	if cfg.Model == "" {
		return fmt.Errorf("no model name")
	}
	if cfg.Device < DeviceAuto || cfg.Device > DeviceMaxGPUIndex {
		return fmt.Errorf("invalid device index %d: expected a value in [%d, %d]", cfg.Device, DeviceAuto, DeviceMaxGPUIndex)
	}
	if cfg.ExtraInstances < 0 || cfg.ExtraInstances > MaxExtraInstances {
		return fmt.Errorf("invalid extra instances count %d: expected a value in [0, %d]", cfg.ExtraInstances, MaxExtraInstances)
	}
	if cfg.MemoryFraction <= 0 || cfg.MemoryFraction > 1 {
		return fmt.Errorf("invalid memory fraction %f: expected a value in (0, 1]", cfg.MemoryFraction)
	}
	return nil
}

// StreamProps is what must be known about the stream before the engine can
// be instantiated: geometry and timing of the input, plus the geometry
// scaling the mode requests.
type StreamProps struct {
	Width             int
	Height            int
	TimeBase          astiav.Rational
	FrameRate         astiav.Rational
	SampleAspectRatio astiav.Rational

	// Scale multiplies the output geometry (1 for all modes but upscaling).
	Scale int
}

func (props StreamProps) Validate() error {
	if props.Width <= 0 || props.Height <= 0 {
		return fmt.Errorf("invalid geometry %dx%d", props.Width, props.Height)
	}
	if props.TimeBase.Num() == 0 {
		return fmt.Errorf("TimeBase is not set")
	}
	if props.FrameRate.Float64() <= 0 {
		return fmt.Errorf("invalid frame rate %v", props.FrameRate)
	}
	if props.Scale < 1 {
		return fmt.Errorf("invalid scale %d", props.Scale)
	}
	return nil
}

// OutputWidth is the width of the frames the engine emits.
func (props StreamProps) OutputWidth() int {
	return props.Width * props.Scale
}

// OutputHeight is the height of the frames the engine emits.
func (props StreamProps) OutputHeight() int {
	return props.Height * props.Scale
}
