// Package filter provides the concrete engine-backed video filters: frame
// interpolation, camera pose estimation, parameter estimation, upscaling and
// stabilization. They all share the orchestration skeleton of
// kernel.EngineProcessor and differ in their option surface, their dispatch
// mode and the parameter vector they hand to the engine.
package filter

import (
	"math"

	"github.com/asticode/go-astiav"
)

// nominalFrameDuration converts a frame rate into the duration of one frame
// expressed in timeBase units.
func nominalFrameDuration(frameRate, timeBase astiav.Rational) int64 {
	if frameRate.Float64() <= 0 || timeBase.Float64() <= 0 {
		return 0
	}
	return int64(math.Round(1 / (frameRate.Float64() * timeBase.Float64())))
}
