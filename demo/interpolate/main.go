package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/avengine/engine"
	"github.com/xaionaro-go/avengine/engine/softengine"
	"github.com/xaionaro-go/avengine/filter"
	"github.com/xaionaro-go/avengine/frame"
	"github.com/xaionaro-go/avengine/logger"
	"github.com/xaionaro-go/avengine/node"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/typing"
)

const demoTimeBaseDen = 90000

func main() {

	// parse the input

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [flags]\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	model := pflag.String("model", "chr-1", "")
	frameCount := pflag.Int("frames", 10, "how many synthetic input frames to feed")
	inputFPS := pflag.Int("fps", 24, "")
	targetFPS := pflag.Int("target-fps", 60, "0 means: keep the input frame rate")
	slowmo := pflag.Float64("slowmo", 1, "")
	width := pflag.Int("width", 320, "")
	height := pflag.Int("height", 240, "")

	pflag.Parse()
	if len(pflag.Args()) != 0 {
		pflag.Usage()
		os.Exit(1)
	}

	// init the context

	ctx := withLogger(context.Background(), loggerLevel)
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	defer belt.Flush(ctx)

	// the interpolation node

	opts := filter.FrameInterpolationOptions{
		Model:            *model,
		SlowMotionFactor: *slowmo,
	}
	if *targetFPS != 0 {
		opts.TargetFrameRate = typing.Opt(astiav.NewRational(*targetFPS, 1))
	}

	fi, err := filter.NewFrameInterpolation(ctx, softengine.New(), opts)
	assert(ctx, err == nil, err)
	defer fi.Close(ctx)

	timeBase := astiav.NewRational(1, demoTimeBaseDen)
	err = fi.Configure(ctx, engine.StreamProps{
		Width:     *width,
		Height:    *height,
		TimeBase:  timeBase,
		FrameRate: astiav.NewRational(*inputFPS, 1),
	})
	assert(ctx, err == nil, err)
	logger.Infof(ctx, "output frame rate: %v", fi.OutputFrameRate())

	interpolationNode := node.NewFromKernel(ctx, fi)

	// serve

	errCh := make(chan node.Error, 4)
	observability.Go(ctx, func(ctx context.Context) {
		for nodeErr := range errCh {
			logger.Errorf(ctx, "%v", nodeErr)
			cancelFn()
		}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	observability.Go(ctx, func(ctx context.Context) {
		defer wg.Done()
		interpolationNode.Serve(ctx, node.ServeConfig{}, errCh)
	})

	// consume the output

	wg.Add(1)
	observability.Go(ctx, func(ctx context.Context) {
		defer wg.Done()
		for output := range interpolationNode.OutputChan() {
			fmt.Printf(
				"output frame: pts=%d (%v), duration=%d\n",
				output.GetPTS(), output.GetPTSAsDuration(), output.GetDuration(),
			)
			frame.Pool.Put(output.Frame)
		}
	})

	// feed synthetic frames

	frameDuration := int64(demoTimeBaseDen / *inputFPS)
feedLoop:
	for i := 0; i < *frameCount; i++ {
		f, err := frame.NewBlankVideo(ctx, *width, *height, astiav.PixelFormatRgba)
		assert(ctx, err == nil, err)
		f.SetPts(int64(i) * frameDuration)
		select {
		case <-ctx.Done():
			frame.Pool.Put(f)
			break feedLoop
		case interpolationNode.InputChan() <- frame.BuildInput(f, timeBase, 0, frameDuration):
		}
	}
	close(interpolationNode.InputFrameCh)

	wg.Wait()
	close(errCh)
	logger.Infof(ctx, "finished")
}
