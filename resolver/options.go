package resolver

import (
	"fmt"
	"net"

	"github.com/joeycumines/logiface"
)

const defaultMaxRequests = 4

type resolverOptions struct {
	backend     Backend
	logger      *logiface.Logger[logiface.Event]
	maxRequests int
}

// Option configures a Resolver instance.
type Option interface {
	applyResolver(*resolverOptions) error
}

type optionImpl struct {
	applyResolverFunc func(*resolverOptions) error
}

func (o *optionImpl) applyResolver(opts *resolverOptions) error {
	return o.applyResolverFunc(opts)
}

// WithBackend sets the lookup backend. Defaults to [net.DefaultResolver].
func WithBackend(backend Backend) Option {
	return &optionImpl{func(opts *resolverOptions) error {
		if backend == nil {
			return fmt.Errorf("resolver: nil backend")
		}
		opts.backend = backend
		return nil
	}}
}

// WithMaxRequests sets how many lookups may be in flight at once.
// Defaults to 4.
func WithMaxRequests(n int) Option {
	return &optionImpl{func(opts *resolverOptions) error {
		if n < 1 {
			return fmt.Errorf("resolver: invalid max requests %d", n)
		}
		opts.maxRequests = n
		return nil
	}}
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *resolverOptions) error {
		opts.logger = logger
		return nil
	}}
}

func resolveOptions(opts []Option) (*resolverOptions, error) {
	cfg := &resolverOptions{
		backend:     net.DefaultResolver,
		maxRequests: defaultMaxRequests,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyResolver(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
