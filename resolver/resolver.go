// Package resolver resolves host names asynchronously for fibers. Each
// lookup in flight holds one of a fixed number of request slots, and one
// event: the lookup completes on another goroutine, stores its result, and
// signals the event, waking the fiber waiting for it.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/joeycumines/go-fiberevent"
	"github.com/joeycumines/logiface"
)

var (
	// ErrNoResources is returned when no request slot, or no event, is
	// free for a new lookup.
	ErrNoResources = errors.New("resolver: no resources for lookup")

	// ErrNotFound is returned when the host has no address of the
	// requested family.
	ErrNotFound = errors.New("resolver: host not found")

	// ErrInvalidNetwork is returned for a network other than "ip", "ip4"
	// or "ip6".
	ErrInvalidNetwork = errors.New("resolver: invalid network")
)

// Backend performs the actual lookups. [net.Resolver] implements it.
type Backend interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

type status uint8

const (
	statusIdle status = iota
	statusWaiting
	statusFound
	statusNotFound
)

// request is a lookup slot. ev is owned by the core, everything else is
// guarded by Resolver.mu.
type request struct {
	err    error
	cancel context.CancelFunc
	addrs  []netip.Addr
	gen    uint64
	signal fiberevent.Event
	ev     fiberevent.Event
	status status
}

// Resolver issues lookups for fibers running on one core.
type Resolver struct {
	core    *fiberevent.Core
	backend Backend
	logger  *logiface.Logger[logiface.Event]
	reqs    []request
	mu      sync.Mutex
}

// New creates a resolver whose lookups are waited on from core.
func New(core *fiberevent.Core, opts ...Option) (*Resolver, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		core:    core,
		backend: cfg.backend,
		logger:  cfg.logger,
		reqs:    make([]request, cfg.maxRequests),
	}, nil
}

// LookupHost resolves host to its addresses of the given network ("ip",
// "ip4" or "ip6", empty meaning "ip"). Literal addresses are returned
// without a lookup. Otherwise the current fiber waits for the backend, and
// the lookup is abandoned (and its context cancelled) if the wait fails.
func (r *Resolver) LookupHost(ctx context.Context, network, host string) ([]netip.Addr, error) {
	if network == "" {
		network = "ip"
	}
	if network != "ip" && network != "ip4" && network != "ip6" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, network)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if !matchNetwork(network, addr) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrNotFound, host, network)
		}
		return []netip.Addr{addr}, nil
	}

	i, gen, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer r.release(i)

	lookupCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.reqs[i].cancel = cancel
	r.mu.Unlock()

	go func() {
		addrs, err := r.backend.LookupNetIP(lookupCtx, network, host)
		r.complete(i, gen, host, addrs, err)
	}()

	return fiberevent.Wait(ctx, r.core, r.reqs[i].ev, func() ([]netip.Addr, bool, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		req := &r.reqs[i]
		switch req.status {
		case statusFound:
			return req.addrs, true, nil
		case statusNotFound:
			return nil, false, req.err
		default:
			return nil, false, nil
		}
	})
}

// acquire finds an idle slot, and claims its event.
func (r *Resolver) acquire() (int, uint64, error) {
	r.mu.Lock()
	i := -1
	for j := range r.reqs {
		if r.reqs[j].status == statusIdle {
			i = j
			r.reqs[j].status = statusWaiting
			break
		}
	}
	r.mu.Unlock()

	if i < 0 {
		r.logger.Warning().
			Int("requests", len(r.reqs)).
			Log("resolver: every request slot is busy")
		return 0, 0, ErrNoResources
	}

	if err := r.core.Claim(&r.reqs[i].ev); err != nil {
		r.mu.Lock()
		r.reqs[i].status = statusIdle
		r.mu.Unlock()
		return 0, 0, fmt.Errorf("%w: %w", ErrNoResources, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	req := &r.reqs[i]
	req.gen++
	req.signal = req.ev
	return i, req.gen, nil
}

// complete stores the result of a lookup, unless the request was abandoned,
// then signals the waiting fiber. It runs on the lookup goroutine.
func (r *Resolver) complete(i int, gen uint64, host string, addrs []netip.Addr, err error) {
	r.mu.Lock()
	req := &r.reqs[i]
	if req.gen != gen || req.status != statusWaiting {
		r.mu.Unlock()
		return
	}
	switch {
	case err == nil && len(addrs) != 0:
		req.status = statusFound
		req.addrs = addrs
	case err == nil || isNotFound(err):
		req.status = statusNotFound
		req.err = fmt.Errorf("%w: %s", ErrNotFound, host)
		if err != nil {
			req.err = fmt.Errorf("%w: %w", req.err, err)
		}
	default:
		req.status = statusNotFound
		req.err = fmt.Errorf("resolver: lookup %s: %w", host, err)
	}
	signal := req.signal
	r.mu.Unlock()

	r.core.State().SetPending(signal)
}

// release returns slot i to the pool, on every exit path of LookupHost.
func (r *Resolver) release(i int) {
	r.mu.Lock()
	req := &r.reqs[i]
	cancel := req.cancel
	req.gen++
	req.status = statusIdle
	req.addrs = nil
	req.err = nil
	req.cancel = nil
	req.signal = fiberevent.Event{}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.core.Unclaim(&req.ev)
}

// InFlight returns the number of busy request slots.
func (r *Resolver) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for i := range r.reqs {
		if r.reqs[i].status != statusIdle {
			n++
		}
	}
	return n
}

func matchNetwork(network string, addr netip.Addr) bool {
	switch network {
	case "ip4":
		return addr.Unmap().Is4()
	case "ip6":
		return addr.Is6() && !addr.Is4In6()
	default:
		return true
	}
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
