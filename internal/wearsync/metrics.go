package wearsync

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts sync activity on either side of the channel.
type Metrics struct {
	Sessions *prometheus.CounterVec
	Messages *prometheus.CounterVec
	Acks     *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sunshine_wear",
			Subsystem: "sync",
			Name:      "sessions_total",
			Help:      "Transport sessions run, by outcome",
		}, []string{"result"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sunshine_wear",
			Subsystem: "sync",
			Name:      "messages_received_total",
			Help:      "Weather update messages received, by outcome",
		}, []string{"result"}),
		Acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sunshine_wear",
			Subsystem: "sync",
			Name:      "acks_total",
			Help:      "Data item acknowledgements, by direction",
		}, []string{"direction"}),
	}
	if reg != nil {
		reg.MustRegister(m.Sessions, m.Messages, m.Acks)
	}
	return m
}

func sessionResult(err error) string {
	switch {
	case err == nil:
		return "sent"
	case errors.Is(err, ErrConnection):
		return "connection_error"
	case errors.Is(err, ErrPeerUnavailable):
		return "peer_unavailable"
	case errors.Is(err, ErrSend):
		return "send_error"
	default:
		return "error"
	}
}
