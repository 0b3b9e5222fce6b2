/*
Package metrics provides Prometheus metrics collection and exposition for
LedgerFlow.

Metrics are registered at package init and exposed via an HTTP handler for
scraping. The secondary index, task engine, scheduler, alerts, delivery and
auth components update their own gauges, counters, and histograms directly
rather than through a central collector — there is no periodic polling
loop here, components call WithLabelValues and Observe at the point an
event happens. The ledger, source registry and index-staleness collectors
are registered but no package updates them.

# Usage

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.LedgerReplayDuration)

	metrics.TasksQueueDepth.WithLabelValues("queued").Set(float64(n))

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
