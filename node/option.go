// option.go defines functional options for configuring nodes.

package node

import "context"

type config struct {
	InputQueueSize  uint
	OutputQueueSize uint
}

type Option interface {
	apply(*config)
}

type Options []Option

func (s Options) apply(cfg *config) {
	for _, opt := range s {
		opt.apply(cfg)
	}
}

func (s Options) config(_ context.Context) config {
	cfg := config{
		InputQueueSize:  1,
		OutputQueueSize: 1,
	}
	s.apply(&cfg)
	return cfg
}

type OptionQueueSizeInput uint

func (opt OptionQueueSizeInput) apply(cfg *config) {
	cfg.InputQueueSize = uint(opt)
}

type OptionQueueSizeOutput uint

func (opt OptionQueueSizeOutput) apply(cfg *config) {
	cfg.OutputQueueSize = uint(opt)
}
