// Package frame defines the value types that carry one decoded video frame
// through the engine adapter, together with its timing information.
package frame

import (
	"time"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avengine/avconv"
)

// Handle is one video frame plus the timing data required to forward it
// downstream. The frame buffer has exactly one owner at any moment; a Handle
// is handed over by value, the *astiav.Frame inside is not.
type Handle struct {
	*astiav.Frame
	TimeBase    astiav.Rational
	StreamIndex int
	Duration    int64
}

func (h *Handle) GetPTS() int64 {
	return h.Frame.Pts()
}

func (h *Handle) SetPTS(v int64) {
	h.Frame.SetPts(v)
}

func (h *Handle) GetDuration() int64 {
	return h.Duration
}

func (h *Handle) SetDuration(v int64) {
	h.Duration = v
}

func (h *Handle) GetTimeBase() astiav.Rational {
	return h.TimeBase
}

func (h *Handle) GetPTSAsDuration() time.Duration {
	return avconv.Duration(h.Frame.Pts(), h.TimeBase)
}

func (h *Handle) GetDurationAsDuration() time.Duration {
	return avconv.Duration(h.Duration, h.TimeBase)
}
