// Package retime computes the pacing parameters for frame-rate-changing
// synthesis. The computation is pure and happens exactly once, when the
// output pad's properties are configured; the result is frozen for the
// lifetime of the engine session.
package retime

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/typing"
)

// synthesisThresholdRatio converts the pacing factor into the sensitivity
// the engine uses when deciding whether to synthesize an intermediate frame
// or pass the input through.
const synthesisThresholdRatio = 0.3

// Policy is the frozen result of the retiming computation.
type Policy struct {
	// SynthesisThreshold controls how aggressively intermediate frames are
	// synthesized versus passed through.
	SynthesisThreshold float64

	// PacingFactor is the output-to-input frame-rate ratio after the
	// slow-motion stretch: the engine aims to resolve each input frame
	// into PacingFactor output frames on average.
	PacingFactor float64

	// SlowMotionFactor stretches the timeline by this factor.
	SlowMotionFactor float64

	// DuplicateThreshold is the similarity score above which a synthesized
	// frame is suppressed as a near-duplicate; zero or below disables the
	// suppression.
	DuplicateThreshold float64

	// OutputFrameRate is the frame rate the output pad should advertise.
	OutputFrameRate astiav.Rational
}

// Calc derives the pacing parameters from the input frame rate, the
// (optional) requested output frame rate, the slow-motion factor and the
// duplicate-suppression threshold.
func Calc(
	inputRate astiav.Rational,
	targetRate typing.Optional[astiav.Rational],
	slowMotionFactor float64,
	duplicateThreshold float64,
) Policy {
	p := Policy{
		SlowMotionFactor:   slowMotionFactor,
		DuplicateThreshold: duplicateThreshold,
		OutputFrameRate:    inputRate,
	}
	if targetRate.IsSet() && targetRate.Get().Num() > 0 {
		target := targetRate.Get()
		rateFactor := target.Float64() / inputRate.Float64()
		p.PacingFactor = rateFactor / slowMotionFactor
		p.OutputFrameRate = target
	} else {
		p.PacingFactor = 1 / slowMotionFactor
	}
	p.SynthesisThreshold = p.PacingFactor * synthesisThresholdRatio
	return p
}

// ParametersVector is the policy serialized in the order the engine expects
// it: threshold, pacing factor, slow-motion factor, duplicate threshold.
func (p Policy) ParametersVector() []float64 {
	return []float64{p.SynthesisThreshold, p.PacingFactor, p.SlowMotionFactor, p.DuplicateThreshold}
}

func (p Policy) String() string {
	return fmt.Sprintf(
		"Policy(pacing:%f, slowmo:%f, dedup:%f, out:%v)",
		p.PacingFactor, p.SlowMotionFactor, p.DuplicateThreshold, p.OutputFrameRate,
	)
}
