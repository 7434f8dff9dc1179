package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	requestsRegistered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipcmsg",
			Subsystem: "channel",
			Name:      "requests_registered_total",
			Help:      "Sync/interrupt requests registered for reply correlation.",
		},
		[]string{"channel"},
	)
	repliesResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipcmsg",
			Subsystem: "channel",
			Name:      "replies_resolved_total",
			Help:      "Replies matched to an outstanding request.",
		},
		[]string{"channel", "outcome"},
	)
	protocolViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipcmsg",
			Subsystem: "channel",
			Name:      "protocol_violations_total",
			Help:      "Nesting, duplicate-reply and unmatched-reply violations.",
		},
		[]string{"channel", "kind"},
	)
	descriptorsAttached = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ipcmsg",
			Subsystem: "message",
			Name:      "descriptors_attached_total",
			Help:      "File descriptors attached to outgoing messages.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(requestsRegistered, repliesResolved, protocolViolations, descriptorsAttached)
	})
}

func RecordRequestRegistered(channel string) {
	RegisterMetrics()
	requestsRegistered.WithLabelValues(channel).Inc()
}

func RecordReplyResolved(channel, outcome string) {
	RegisterMetrics()
	repliesResolved.WithLabelValues(channel, outcome).Inc()
}

func RecordProtocolViolation(channel, kind string) {
	RegisterMetrics()
	protocolViolations.WithLabelValues(channel, kind).Inc()
}

func RecordDescriptorAttached() {
	RegisterMetrics()
	descriptorsAttached.Inc()
}
