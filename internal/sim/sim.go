// Package sim runs a configurable workload of interrupt sources, host
// lookups and alarms, across the cores of a single [fiberevent.State].
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/joeycumines/go-fiberevent"
	"github.com/joeycumines/go-fiberevent/fiber"
	"github.com/joeycumines/go-fiberevent/irq"
	"github.com/joeycumines/go-fiberevent/promexport"
	"github.com/joeycumines/go-fiberevent/resolver"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsNamespace prefixes the metrics served on /metrics.
const MetricsNamespace = "fibersim"

// Report is the outcome of a run, per core.
type Report struct {
	Cores []CoreReport
}

// CoreReport counts what happened on a single core.
type CoreReport struct {
	Core         int
	Metrics      fiberevent.Metrics
	Interrupts   uint64
	Lookups      int
	LookupErrors int
	AlarmFirings int
}

// WriteTo writes one line per core to w.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, c := range r.Cores {
		n, err := fmt.Fprintf(w,
			"core %d: cycles=%d sleeps=%d wakes=%d resumes=%d idle=%s interrupts=%d lookups=%d lookup_errors=%d alarms=%d\n",
			c.Core,
			c.Metrics.DispatchCycles,
			c.Metrics.Sleeps,
			c.Metrics.Wakes,
			c.Metrics.Resumes,
			c.Metrics.Idle.Round(time.Microsecond),
			c.Interrupts,
			c.Lookups,
			c.LookupErrors,
			c.AlarmFirings,
		)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// NewLogger returns a JSON logger writing to w.
func NewLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

type coreSim struct {
	core   *fiberevent.Core
	s      *fiber.Scheduler
	r      *resolver.Resolver
	report CoreReport
}

// Run runs cfg until its duration passes, ctx is cancelled, or every core
// runs out of work. Stopping because of the duration or ctx is not an error.
func Run(ctx context.Context, cfg Config, logger *logiface.Logger[logiface.Event]) (_ *Report, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := fiberevent.New(
		fiberevent.WithCores(cfg.Cores),
		fiberevent.WithLogger(logger),
		fiberevent.WithMetrics(true),
	)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, st.Close())
	}()

	var backend resolver.Backend = net.DefaultResolver
	if len(cfg.Hosts) != 0 {
		backend = newStaticBackend(cfg.Hosts)
	}

	cores := make([]*coreSim, 0, cfg.Cores)
	defer func() {
		for _, c := range cores {
			c.s.Close()
		}
	}()
	for i := range cfg.Cores {
		c := &coreSim{core: st.Core(i)}
		c.report.Core = i
		if c.s, err = fiber.NewScheduler(c.core, fiber.WithLogger(logger)); err != nil {
			return nil, err
		}
		cores = append(cores, c)
		if c.r, err = resolver.New(c.core, resolver.WithBackend(backend), resolver.WithLogger(logger)); err != nil {
			return nil, err
		}
	}

	var raisers sync.WaitGroup
	defer raisers.Wait()

	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, v := range cfg.IRQs {
		c := cores[v.Core]
		line, err := irq.Enable(c.core)
		if err != nil {
			return nil, fmt.Errorf("irq %q: %w", v.Name, err)
		}
		irq.Handle(ctx, c.s, line, func(ctx context.Context, n uint64) error {
			c.report.Interrupts += n
			logger.Trace().
				Str("irq", v.Name).
				Uint64("count", n).
				Log("sim: interrupt")
			return nil
		}, nil)
		raisers.Go(func() { raise(ctx, line, v.Period) })
	}

	for _, v := range cfg.Lookups {
		c := cores[v.Core]
		c.s.Spawn(ctx, func(ctx context.Context) error {
			addrs, err := c.r.LookupHost(ctx, v.Network, v.Host)
			if err != nil {
				c.report.LookupErrors++
				logger.Warning().
					Str("host", v.Host).
					Err(err).
					Log("sim: lookup failed")
				return nil
			}
			c.report.Lookups++
			logger.Info().
				Str("host", v.Host).
				Any("addrs", addrs).
				Log("sim: lookup done")
			return nil
		})
	}

	for _, v := range cfg.Alarms {
		c := cores[v.Core]
		var fired int
		c.s.AddAlarmIn(ctx, v.In, func(ctx context.Context) time.Duration {
			fired++
			c.report.AlarmFirings++
			logger.Debug().
				Str("alarm", v.Name).
				Int("fired", fired).
				Log("sim: alarm")
			if v.Count > 0 && fired >= v.Count {
				return 0
			}
			return v.Repeat
		}, true)
	}

	if cfg.MetricsAddr != "" {
		srv, err := serveMetrics(cfg.MetricsAddr, st, logger)
		if err != nil {
			return nil, err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().
		Int("cores", cfg.Cores).
		Int("irqs", len(cfg.IRQs)).
		Int("lookups", len(cfg.Lookups)).
		Int("alarms", len(cfg.Alarms)).
		Dur("duration", cfg.Duration).
		Log("sim: started")

	errs := make([]error, len(cores))
	var wg sync.WaitGroup
	for i, c := range cores {
		wg.Go(func() {
			if err := c.s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				errs[i] = fmt.Errorf("core %d: %w", i, err)
			}
		})
	}
	wg.Wait()
	cancel()

	report := &Report{Cores: make([]CoreReport, len(cores))}
	for i, c := range cores {
		c.report.Metrics = c.core.Metrics()
		report.Cores[i] = c.report
	}

	logger.Info().Log("sim: stopped")

	return report, errors.Join(errs...)
}

func raise(ctx context.Context, line *irq.Line, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			line.Raise()
		}
	}
}

func serveMetrics(addr string, st *fiberevent.State, logger *logiface.Logger[logiface.Event]) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(promexport.NewCollector(st, MetricsNamespace)); err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Err().Err(err).Log("sim: metrics server failed")
		}
	}()

	logger.Info().
		Str("addr", srv.Addr).
		Log("sim: serving metrics")

	return srv, nil
}
