package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-drift/motion/pkg/effects"
)

const metricsNamespace = "motion"

// Collector exports scheduler metrics to Prometheus. Every scrape reads the
// snapshot published by the last tick.
type Collector struct {
	scheduler *Scheduler

	running    *prometheus.Desc
	paused     *prometheus.Desc
	deferred   *prometheus.Desc
	cap        *prometheus.Desc
	level      *prometheus.Desc
	reduced    *prometheus.Desc
	overrun    *prometheus.Desc
	lastTick   *prometheus.Desc
	registered *prometheus.Desc
	completed  *prometheus.Desc
	cancelled  *prometheus.Desc
	failed     *prometheus.Desc
	ticks      *prometheus.Desc
	overruns   *prometheus.Desc
	fallback   *prometheus.Desc
}

// NewCollector creates a collector for s.
func NewCollector(s *Scheduler) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "scheduler", name), help, labels, nil)
	}
	return &Collector{
		scheduler:  s,
		running:    desc("running", "Animations currently running."),
		paused:     desc("paused", "Animations currently paused."),
		deferred:   desc("deferred", "Pending animations waiting for capacity."),
		cap:        desc("concurrency_cap", "Current admission cap."),
		level:      desc("quality_level", "Current quality level; zero is full quality."),
		reduced:    desc("reduced_fidelity", "One when blur-class effects are forced onto the CPU."),
		overrun:    desc("overrun_fraction", "Fraction of recent ticks over the frame budget."),
		lastTick:   desc("last_tick_seconds", "Cost of the last tick."),
		registered: desc("registered_total", "Animations registered."),
		completed:  desc("completed_total", "Animations completed."),
		cancelled:  desc("cancelled_total", "Animations cancelled, including failures."),
		failed:     desc("failed_total", "Animations cancelled because their setter failed."),
		ticks:      desc("ticks_total", "Ticks run."),
		overruns:   desc("overrun_ticks_total", "Ticks that cost more than the frame budget."),
		fallback:   desc("effect_cpu_fallback", "One for each effect kind permanently rendered on the CPU.", "kind"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.running, c.paused, c.deferred, c.cap, c.level, c.reduced, c.overrun, c.lastTick,
		c.registered, c.completed, c.cancelled, c.failed, c.ticks, c.overruns, c.fallback,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.scheduler.Metrics()

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}

	gauge(c.running, float64(m.Running))
	gauge(c.paused, float64(m.Paused))
	gauge(c.deferred, float64(m.Deferred))
	gauge(c.cap, float64(m.Cap))
	gauge(c.level, float64(m.Level))
	reduced := 0.0
	if m.Fidelity != effects.FidelityFull {
		reduced = 1
	}
	gauge(c.reduced, reduced)
	gauge(c.overrun, m.OverrunFraction)
	gauge(c.lastTick, m.LastTick.Seconds())

	counter(c.registered, m.Registered)
	counter(c.completed, m.Completed)
	counter(c.cancelled, m.Cancelled)
	counter(c.failed, m.Failed)
	counter(c.ticks, m.Ticks)
	counter(c.overruns, m.OverrunTicks)

	for _, kind := range m.Fallbacks {
		gauge(c.fallback, 1, kind)
	}
}
