package frame

import (
	"github.com/asticode/go-astiav"
)

// Input is a frame received from the upstream pad. Ownership of the frame
// transfers to the callee of SendInputFrame.
type Input Handle

func BuildInput(
	f *astiav.Frame,
	timeBase astiav.Rational,
	streamIndex int,
	duration int64,
) Input {
	return Input{
		Frame:       f,
		TimeBase:    timeBase,
		StreamIndex: streamIndex,
		Duration:    duration,
	}
}

func (f *Input) GetPTS() int64                { return (*Handle)(f).GetPTS() }
func (f *Input) GetDuration() int64           { return (*Handle)(f).GetDuration() }
func (f *Input) GetTimeBase() astiav.Rational { return (*Handle)(f).GetTimeBase() }
func (f *Input) GetStreamIndex() int          { return f.StreamIndex }
