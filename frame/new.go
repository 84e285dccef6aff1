package frame

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avengine/logger"
)

// InitVideo prepares a pooled frame to carry a video buffer of the given
// geometry and allocates the buffer.
func InitVideo(
	f *astiav.Frame,
	width, height int,
	pixelFormat astiav.PixelFormat,
) error {
	f.SetWidth(width)
	f.SetHeight(height)
	f.SetPixelFormat(pixelFormat)
	if err := f.AllocBuffer(0); err != nil {
		return fmt.Errorf("unable to allocate frame buffer: %w", err)
	}
	return nil
}

func NewBlankVideo(
	ctx context.Context,
	width, height int,
	pixelFormat astiav.PixelFormat,
) (_ret *astiav.Frame, _err error) {
	logger.Tracef(ctx, "NewBlankVideo(ctx, %dx%d)", width, height)
	defer func() { logger.Tracef(ctx, "/NewBlankVideo(ctx, %dx%d): %v, %v", width, height, _ret, _err) }()

	f := Pool.Get()
	defer func() {
		if _err != nil {
			Pool.Put(f)
		}
	}()

	if err := InitVideo(f, width, height, pixelFormat); err != nil {
		return nil, err
	}
	if err := f.ImageFillBlack(); err != nil {
		return nil, fmt.Errorf("unable to fill frame with black color: %w", err)
	}
	return f, nil
}
