// Package metrics exposes Prometheus instrumentation for the authoring engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FlowSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_flow_saves_total",
		Help: "Total number of flow save batches applied, labelled by outcome.",
	}, []string{"status"})

	SavesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "routing_flow_saves_skipped_total",
		Help: "Total number of saves skipped because the diff was empty.",
	})

	BatchOperations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "routing_flow_batch_operations",
		Help:    "Number of operations per applied save batch.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})

	DraftsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "routing_drafts_created_total",
		Help: "Total number of draft change sets created.",
	})

	DraftsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "routing_drafts_published_total",
		Help: "Total number of draft change sets published.",
	})

	DraftsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "routing_drafts_discarded_total",
		Help: "Total number of draft change sets discarded.",
	})

	LayoutCycleBreaks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "routing_layout_cycle_breaks_total",
		Help: "Total number of nodes whose layout depth was resolved by breaking a cycle.",
	})
)

// Serve starts a standalone metrics listener. It blocks, so run it in
// its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server.ListenAndServe()
}
