package metrics

import "github.com/prometheus/client_golang/prometheus"

type Observer interface {
	Observe(val float64, labels ...string)

	// for now we will tightly couple to the prometheus collector type
	// the go otel metrics sdk also has a prometheus adapter that implements this interface.
	prometheus.Collector
}

type Metrics struct {
	MessagesCount   Observer
	CommandCount    Observer
	CooldownCount   Observer
	ActiveCooldowns prometheus.Collector
	CommandLatency  Observer
	StatsPosts      Observer
}

func (m Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesCount,
		m.CommandCount,
		m.CooldownCount,
		m.ActiveCooldowns,
		m.CommandLatency,
		m.StatsPosts,
	}
}

// New creates the bot's metrics. The collectors are not registered.
// active reports the number of cooldowns in effect when the gauge is scraped.
func New(active func() float64) *Metrics {
	return &Metrics{
		MessagesCount: NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "dizzy",
					Subsystem: "discord",
					Name:      "messages",
					Help:      "Number of messages received from Discord.",
				},
			),
		),
		CommandCount: NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "dizzy",
					Subsystem: "commands",
					Name:      "invocations",
					Help:      "Number of command invocations that ran.",
				},
				[]string{"name", "result"},
			),
		),
		CooldownCount: NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "dizzy",
					Subsystem: "cooldown",
					Name:      "checks",
					Help:      "Number of cooldown checks by outcome: allowed, notified, or suppressed.",
				},
				[]string{"outcome"},
			),
		),
		ActiveCooldowns: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "dizzy",
				Subsystem: "cooldown",
				Name:      "active",
				Help:      "Number of cooldowns currently in effect.",
			},
			active,
		),
		CommandLatency: NewPromObserverVec(
			prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 5, 10},
					Namespace: "dizzy",
					Subsystem: "commands",
					Name:      "latency",
					Help:      "How long commands take to run in seconds.",
				},
				[]string{"name"},
			),
		),
		StatsPosts: NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "dizzy",
					Subsystem: "stats",
					Name:      "posts",
					Help:      "Number of server count posts to bot lists.",
				},
				[]string{"site", "ok"},
			),
		),
	}
}
