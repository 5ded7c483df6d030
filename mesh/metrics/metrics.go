// Package metrics wires rankmesh's runtime counters into Prometheus, the metrics
// stack used throughout the example pack (teacher's stats package and others).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Set is one rank's collection of runtime counters/gauges, registered under a
// caller-supplied Registerer (production code uses prometheus.DefaultRegisterer;
// tests use a scratch prometheus.NewRegistry()).
type Set struct {
	MessagesSent   prometheus.Counter
	MessagesRecv   prometheus.Counter
	BytesSent      prometheus.Counter
	BytesRecv      prometheus.Counter
	DeadlocksFound prometheus.Counter
	QueueDepth     *prometheus.GaugeVec
}

// NewSet builds and registers a Set labeled by this rank's numeric identity. Safe to
// call once per rank per process; registering the same rank twice panics, matching
// prometheus.MustRegister's usual contract.
func NewSet(reg prometheus.Registerer, rank int) *Set {
	labels := prometheus.Labels{"rank": strconv.Itoa(rank)}
	s := &Set{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rankmesh_messages_sent_total",
			Help:        "Messages sent via Send.",
			ConstLabels: labels,
		}),
		MessagesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rankmesh_messages_received_total",
			Help:        "Messages matched and delivered via Recv.",
			ConstLabels: labels,
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rankmesh_bytes_sent_total",
			Help:        "Payload bytes sent via Send.",
			ConstLabels: labels,
		}),
		BytesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rankmesh_bytes_received_total",
			Help:        "Payload bytes delivered via Recv.",
			ConstLabels: labels,
		}),
		DeadlocksFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rankmesh_deadlocks_detected_total",
			Help:        "Recv calls that returned DEADLOCK_DETECTED.",
			ConstLabels: labels,
		}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "rankmesh_inbox_queue_depth",
			Help:        "Current inbox entry count, by peer rank.",
			ConstLabels: labels,
		}, []string{"peer"}),
	}
	reg.MustRegister(s.MessagesSent, s.MessagesRecv, s.BytesSent, s.BytesRecv, s.DeadlocksFound, s.QueueDepth)
	return s
}
