package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Mutations counts persisted cart mutations by operation.
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Total number of persisted cart mutations",
		},
		[]string{"op"},
	)

	// CorruptSlotReads counts slot documents that could not be parsed and
	// were treated as an empty cart.
	CorruptSlotReads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_corrupt_slot_reads_total",
			Help: "Total number of unparsable cart documents read from storage",
		},
	)

	// CrossInstanceChanges counts change notifications received from other
	// instances.
	CrossInstanceChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_cross_instance_changes_total",
			Help: "Total number of cart change notifications received from other instances",
		},
	)

	// NotifyErrors counts notifier failures by notifier name.
	NotifyErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_notify_errors_total",
			Help: "Total number of failed cart change notifications",
		},
		[]string{"notifier"},
	)
)
