// Package promexport exports the per-core metrics of a [fiberevent.State]
// as Prometheus metrics.
package promexport

import (
	"strconv"

	"github.com/joeycumines/go-fiberevent"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements [prometheus.Collector] over a [fiberevent.State].
// Every metric carries a "core" label.
type Collector struct {
	state          *fiberevent.State
	dispatchCycles *prometheus.Desc
	sleeps         *prometheus.Desc
	wakes          *prometheus.Desc
	resumes        *prometheus.Desc
	idleSeconds    *prometheus.Desc
	claimed        *prometheus.Desc
	pending        *prometheus.Desc
}

// NewCollector returns a collector for state, with metric names prefixed by
// namespace.
func NewCollector(state *fiberevent.State, namespace string) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, []string{"core"}, nil)
	}
	return &Collector{
		state:          state,
		dispatchCycles: desc("dispatch_cycles_total", "Passes of the dispatch loop over the pending set."),
		sleeps:         desc("sleeps_total", "Waits on the idle primitive."),
		wakes:          desc("wakes_total", "Dispatch calls that returned after resuming a watcher."),
		resumes:        desc("resumes_total", "Watchers resumed by dispatch."),
		idleSeconds:    desc("idle_seconds_total", "Time spent waiting on the idle primitive."),
		claimed:        desc("claimed_events", "Event slots held by the core."),
		pending:        desc("pending_events", "Pending event slots held by the core."),
	}
}

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.dispatchCycles
	ch <- c.sleeps
	ch <- c.wakes
	ch <- c.resumes
	ch <- c.idleSeconds
	ch <- c.claimed
	ch <- c.pending
}

// Collect implements [prometheus.Collector].
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for i := range c.state.NumCores() {
		core := c.state.Core(i)
		label := strconv.Itoa(i)
		m := core.Metrics()
		ch <- prometheus.MustNewConstMetric(c.dispatchCycles, prometheus.CounterValue, float64(m.DispatchCycles), label)
		ch <- prometheus.MustNewConstMetric(c.sleeps, prometheus.CounterValue, float64(m.Sleeps), label)
		ch <- prometheus.MustNewConstMetric(c.wakes, prometheus.CounterValue, float64(m.Wakes), label)
		ch <- prometheus.MustNewConstMetric(c.resumes, prometheus.CounterValue, float64(m.Resumes), label)
		ch <- prometheus.MustNewConstMetric(c.idleSeconds, prometheus.CounterValue, m.Idle.Seconds(), label)
		ch <- prometheus.MustNewConstMetric(c.claimed, prometheus.GaugeValue, float64(core.Claimed()), label)
		ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(core.Pending()), label)
	}
}
