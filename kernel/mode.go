// mode.go defines the dispatch modes of the engine processor.

package kernel

import (
	"fmt"
)

// Mode selects the per-frame emission policy of an EngineProcessor. The
// orchestration skeleton is shared; the modes differ only in what happens to
// the engine's output.
type Mode int

const (
	ModeUndefined Mode = iota

	// ModeAnnotation is echo-through: the original input frame is forwarded
	// unchanged, the engine's outputs are pumped and discarded (the engine
	// writes its per-frame results to a side channel).
	ModeAnnotation

	// ModeEstimation is echo-through as well, but the engine's outputs are
	// not even pumped mid-stream: statistics accumulate inside the engine.
	ModeEstimation

	// ModeSynthesis buffers: one input may resolve into zero, one or many
	// output frames, each carrying an engine-computed timestamp. The most
	// recent input is retained until superseded or consumed at drain time.
	ModeSynthesis
)

func (m Mode) String() string {
	switch m {
	case ModeUndefined:
		return "<undefined>"
	case ModeAnnotation:
		return "annotation"
	case ModeEstimation:
		return "estimation"
	case ModeSynthesis:
		return "synthesis"
	default:
		return fmt.Sprintf("<unknown:%d>", int(m))
	}
}

// echoesInput reports whether the original input frame is what goes
// downstream.
func (m Mode) echoesInput() bool {
	return m == ModeAnnotation || m == ModeEstimation
}

// pumpsMidStream reports whether the engine's outputs are retrieved on every
// input frame.
func (m Mode) pumpsMidStream() bool {
	return m == ModeAnnotation || m == ModeSynthesis
}

// forwardsEngineOutput reports whether pumped engine outputs are forwarded
// downstream (as opposed to discarded).
func (m Mode) forwardsEngineOutput() bool {
	return m == ModeSynthesis
}
