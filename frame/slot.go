// slot.go implements the single-owner retained-frame slot.

package frame

import (
	"github.com/asticode/go-astiav"
)

// Slot holds at most one retained frame. It is used by retiming kernels to
// keep the most recent input around until the stream tail is finalized.
// Replacing the content releases the previously retained frame; there is
// never more than one frame owned by a Slot.
type Slot struct {
	frame    *astiav.Frame
	pts      int64
	duration int64
}

// Replace retains the given frame and releases whatever was retained before.
func (s *Slot) Replace(f *astiav.Frame, pts int64, duration int64) {
	if s.frame != nil {
		Pool.Put(s.frame)
	}
	s.frame = f
	s.pts = pts
	s.duration = duration
}

func (s *Slot) IsSet() bool {
	return s.frame != nil
}

// Get returns the retained frame without transferring ownership.
func (s *Slot) Get() (*astiav.Frame, bool) {
	return s.frame, s.frame != nil
}

func (s *Slot) PTS() int64 {
	return s.pts
}

func (s *Slot) Duration() int64 {
	return s.duration
}

// Take transfers the retained frame out of the slot; the caller becomes the
// owner. The slot is empty afterwards.
func (s *Slot) Take() (*astiav.Frame, bool) {
	f := s.frame
	s.frame = nil
	return f, f != nil
}

// Release frees the retained frame, if any.
func (s *Slot) Release() {
	if s.frame == nil {
		return
	}
	Pool.Put(s.frame)
	s.frame = nil
}
