// output.go defines the Output type for frames to be forwarded downstream.

package frame

import (
	"time"

	"github.com/asticode/go-astiav"
)

// Output is a frame ready to be forwarded to the downstream pad. Ownership of
// the frame transfers to whoever receives it from the output channel.
type Output Handle

func BuildOutput(
	f *astiav.Frame,
	timeBase astiav.Rational,
	streamIndex int,
	duration int64,
) Output {
	return Output{
		Frame:       f,
		TimeBase:    timeBase,
		StreamIndex: streamIndex,
		Duration:    duration,
	}
}

func (f *Output) GetPTS() int64                { return (*Handle)(f).GetPTS() }
func (f *Output) SetPTS(v int64)               { (*Handle)(f).SetPTS(v) }
func (f *Output) GetDuration() int64           { return (*Handle)(f).GetDuration() }
func (f *Output) SetDuration(v int64)          { (*Handle)(f).SetDuration(v) }
func (f *Output) GetTimeBase() astiav.Rational { return (*Handle)(f).GetTimeBase() }
func (f *Output) GetStreamIndex() int          { return f.StreamIndex }

func (f *Output) GetPTSAsDuration() time.Duration {
	return (*Handle)(f).GetPTSAsDuration()
}

