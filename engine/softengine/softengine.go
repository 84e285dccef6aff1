// Package softengine is a naive in-process implementation of engine.Backend,
// used by demos and as a reference for tests. It echoes frames for the
// analysis-type models and synthesizes intermediate frames for the
// retiming-type models by alpha-blending consecutive inputs. It is not a
// model executor; it only reproduces the engine's observable contract.
package softengine

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/anthonynsimon/bild/blend"
	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/frame"
	"github.com/xaionaro-go/avengine/logger"
)

// policy parameter vector layout of the retiming models
const (
	paramIdxSynthesisThreshold = 0
	paramIdxPacingFactor       = 1
	paramIdxSlowMotionFactor   = 2
	paramIdxDuplicateThreshold = 3
	retimingParamCount         = 4
)

type Backend struct{}

var _ engine.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Create(
	ctx context.Context,
	cfg engine.Config,
	props engine.StreamProps,
) (engine.BackendHandle, error) {
	if props.Scale != 1 {
		return nil, fmt.Errorf("model '%s': geometry scaling is not supported", cfg.Model)
	}
	h := &Handle{
		cfg:   cfg,
		props: props,
	}
	if strings.HasPrefix(cfg.Model, "chr-") {
		if len(cfg.Parameters) != retimingParamCount {
			return nil, fmt.Errorf("model '%s': expected a parameter vector of %d values, got %d", cfg.Model, retimingParamCount, len(cfg.Parameters))
		}
		h.pacingFactor = cfg.Parameters[paramIdxPacingFactor]
		if h.pacingFactor <= 0 {
			return nil, fmt.Errorf("model '%s': non-positive pacing factor %f", cfg.Model, h.pacingFactor)
		}
		h.retiming = true
	}
	return h, nil
}

type pendingOutput struct {
	img image.Image
	pts int64
}

// Handle is one live softengine instance.
type Handle struct {
	cfg   engine.Config
	props engine.StreamProps

	locker   sync.Mutex
	retiming bool

	// pacingFactor is how many output frames to aim for per input frame.
	pacingFactor float64

	prevImage image.Image
	prevPTS   int64
	havePrev  bool

	queue []pendingOutput
	ended bool
}

var _ engine.BackendHandle = (*Handle)(nil)

func (h *Handle) Submit(ctx context.Context, f *astiav.Frame, pts int64) error {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.ended {
		return fmt.Errorf("the stream was already ended")
	}

	img, err := h.frameToImage(f)
	if err != nil {
		return err
	}

	if !h.retiming {
		h.queue = append(h.queue, pendingOutput{img: img, pts: pts})
		return nil
	}

	if h.havePrev {
		h.synthesizeLocked(ctx, h.prevImage, img, h.prevPTS, pts)
	}
	h.prevImage, h.prevPTS, h.havePrev = img, pts, true
	return nil
}

// synthesizeLocked emits the frames covering [fromPTS, toPTS): the retained
// previous input plus the blended intermediates the pacing factor asks for.
func (h *Handle) synthesizeLocked(
	ctx context.Context,
	from, to image.Image,
	fromPTS, toPTS int64,
) {
	n := int(math.Round(h.pacingFactor))
	if n < 1 {
		n = 1
	}
	step := float64(toPTS-fromPTS) / float64(n)
	for i := 0; i < n; i++ {
		alpha := float64(i) / float64(n)
		img := from
		if alpha > 0 {
			img = blend.Opacity(from, to, alpha)
		}
		pts := fromPTS + int64(math.Round(float64(i)*step))
		h.queue = append(h.queue, pendingOutput{img: img, pts: pts})
	}
	logger.Tracef(ctx, "synthesized %d frame(s) for the segment [%d, %d)", n, fromPTS, toPTS)
}

func (h *Handle) TryEmit(ctx context.Context, dst *astiav.Frame) (int64, bool, error) {
	h.locker.Lock()
	defer h.locker.Unlock()
	if len(h.queue) == 0 {
		return 0, false, nil
	}
	out := h.queue[0]
	h.queue = h.queue[1:]

	if err := frame.InitVideo(dst, h.props.Width, h.props.Height, astiav.PixelFormatRgba); err != nil {
		return 0, false, err
	}
	if err := dst.Data().FromImage(out.img); err != nil {
		return 0, false, fmt.Errorf("unable to convert the image into a frame: %w", err)
	}
	return out.pts, true, nil
}

func (h *Handle) SignalEnd(ctx context.Context) {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.ended {
		return
	}
	h.ended = true
	if h.retiming && h.havePrev {
		// the final segment: nothing to blend against, the retained frame
		// closes the stream as-is
		h.queue = append(h.queue, pendingOutput{img: h.prevImage, pts: h.prevPTS})
		h.prevImage, h.havePrev = nil, false
	}
}

func (h *Handle) PendingCount(ctx context.Context) int {
	h.locker.Lock()
	defer h.locker.Unlock()
	return len(h.queue)
}

func (h *Handle) Wait(d time.Duration) {
	time.Sleep(d)
}

func (h *Handle) Destroy(ctx context.Context) {
	h.locker.Lock()
	defer h.locker.Unlock()
	h.queue = nil
	h.prevImage = nil
	h.havePrev = false
	h.ended = true
}

func (h *Handle) frameToImage(f *astiav.Frame) (image.Image, error) {
	img, err := f.Data().GuessImageFormat()
	if err != nil {
		return nil, fmt.Errorf("unable to guess the image format: %w", err)
	}
	if err := f.Data().ToImage(img); err != nil {
		return nil, fmt.Errorf("unable to convert the frame into an image: %w", err)
	}
	return img, nil
}
