package fiberevent

import (
	"fmt"

	"github.com/joeycumines/logiface"
)

// MaxCores is the largest number of cores a [State] supports.
const MaxCores = 32

// stateOptions holds configuration options for State creation.
type stateOptions struct {
	logger         *logiface.Logger[logiface.Event]
	cores          int
	spinLimit      int
	metricsEnabled bool
}

// Option configures a State instance.
type Option interface {
	applyState(*stateOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyStateFunc func(*stateOptions) error
}

func (o *optionImpl) applyState(opts *stateOptions) error {
	return o.applyStateFunc(opts)
}

// WithCores sets the number of cores, between 1 and [MaxCores].
// Defaults to 2.
func WithCores(n int) Option {
	return &optionImpl{func(opts *stateOptions) error {
		if n < 1 || n > MaxCores {
			return fmt.Errorf("fiberevent: invalid core count %d", n)
		}
		opts.cores = n
		return nil
	}}
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *stateOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables per-core dispatch metrics, see [Core.Metrics].
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *stateOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithSpinLimit sets how many failed lock attempts are made before the
// processor is yielded. Non-positive values select the default.
func WithSpinLimit(n int) Option {
	return &optionImpl{func(opts *stateOptions) error {
		opts.spinLimit = n
		return nil
	}}
}

// resolveOptions applies Option instances to stateOptions.
func resolveOptions(opts []Option) (*stateOptions, error) {
	cfg := &stateOptions{
		cores: 2,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyState(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
