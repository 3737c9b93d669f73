// Package metrics exports wrapper lifecycle events as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/objbridge/wrapper"
)

const (
	namespaceName = "objbridge"
	subsystemName = "wrapper"
)

// Collector counts wrapper lifecycle events. It implements wrapper.Observer;
// pass it in wrapper.Options.Observer.
type Collector struct {
	Bound        *prometheus.CounterVec
	Invalidated  *prometheus.CounterVec
	Deallocated  *prometheus.CounterVec
	Destructors  *prometheus.CounterVec
	Live         prometheus.Gauge
	KeptRefs     prometheus.Gauge
	ParentEdits  prometheus.Counter
	OwnerChanges prometheus.Counter
}

// NewCollector creates a collector whose metrics are not yet registered.
func NewCollector() *Collector {
	return &Collector{
		Bound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespaceName,
				Subsystem: subsystemName,
				Name:      "bound_total",
				Help:      "Total number of wrappers bound to a native pointer.",
			},
			[]string{"type"},
		),
		Invalidated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespaceName,
				Subsystem: subsystemName,
				Name:      "invalidated_total",
				Help:      "Total number of wrappers invalidated.",
			},
			[]string{"type"},
		),
		Deallocated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespaceName,
				Subsystem: subsystemName,
				Name:      "deallocated_total",
				Help:      "Total number of wrappers swept.",
			},
			[]string{"type"},
		),
		Destructors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespaceName,
				Subsystem: subsystemName,
				Name:      "native_destructor_calls_total",
				Help:      "Total number of native destructor invocations.",
			},
			[]string{"type"},
		),
		Live: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespaceName,
				Subsystem: subsystemName,
				Name:      "live",
				Help:      "Number of wrappers currently allocated.",
			},
		),
		KeptRefs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespaceName,
				Subsystem: subsystemName,
				Name:      "kept_references",
				Help:      "Number of host references currently kept alive by wrappers.",
			},
		),
		ParentEdits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespaceName,
				Subsystem: subsystemName,
				Name:      "parent_changes_total",
				Help:      "Total number of parent/child edge changes.",
			},
		),
		OwnerChanges: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespaceName,
				Subsystem: subsystemName,
				Name:      "ownership_changes_total",
				Help:      "Total number of ownership transfers.",
			},
		),
	}
}

// Register registers the collector's metrics with reg.
func (c *Collector) Register(reg prometheus.Registerer) {
	reg.MustRegister(c.Bound)
	reg.MustRegister(c.Invalidated)
	reg.MustRegister(c.Deallocated)
	reg.MustRegister(c.Destructors)
	reg.MustRegister(c.Live)
	reg.MustRegister(c.KeptRefs)
	reg.MustRegister(c.ParentEdits)
	reg.MustRegister(c.OwnerChanges)
}

// Observe implements wrapper.Observer.
func (c *Collector) Observe(ev wrapper.Event, obj *wrapper.Object) {
	switch ev {
	case wrapper.EventBound:
		c.Bound.WithLabelValues(obj.TypeName()).Inc()
		c.Live.Inc()
	case wrapper.EventInvalidated:
		c.Invalidated.WithLabelValues(obj.TypeName()).Inc()
	case wrapper.EventDeallocated:
		c.Deallocated.WithLabelValues(obj.TypeName()).Inc()
		c.Live.Dec()
	case wrapper.EventDestructorCalled:
		c.Destructors.WithLabelValues(obj.TypeName()).Inc()
	case wrapper.EventReferenceKept:
		c.KeptRefs.Inc()
	case wrapper.EventReferenceReleased:
		c.KeptRefs.Dec()
	case wrapper.EventParentChanged:
		c.ParentEdits.Inc()
	case wrapper.EventOwnershipChanged:
		c.OwnerChanges.Inc()
	}
}
