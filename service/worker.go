package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kwv/coordenv/coordenv"
)

// Worker runs batches of site queries through the finder.
type Worker struct {
	finder  *coordenv.LocalGeometryFinder
	batch   coordenv.BatchOptions
	metrics *Metrics

	mu        sync.RWMutex
	publisher *Publisher
}

// NewWorker creates a worker. metrics and publisher may be nil.
func NewWorker(finder *coordenv.LocalGeometryFinder, batch BatchConfig, metrics *Metrics, publisher *Publisher) *Worker {
	return &Worker{
		finder:    finder,
		batch:     coordenv.BatchOptions{Workers: batch.Workers, Budget: batch.Budget},
		metrics:   metrics,
		publisher: publisher,
	}
}

// Finder returns the finder used for matching.
func (w *Worker) Finder() *coordenv.LocalGeometryFinder {
	return w.finder
}

// Run matches all queries as one batch. Results are returned in query order,
// also when the batch is aborted by a catalog error.
func (w *Worker) Run(ctx context.Context, queries []SiteQuery) ([]SiteResult, error) {
	sites := make([]coordenv.Site, len(queries))
	for i, q := range queries {
		sites[i] = q.Site()
	}

	start := time.Now()
	reports, err := w.finder.ComputeSites(ctx, sites, w.batch)
	elapsed := time.Since(start)

	status := BatchStatus{Sites: len(reports), ElapsedMs: float64(elapsed) / float64(time.Millisecond)}
	results := make([]SiteResult, len(reports))
	for i, report := range reports {
		results[i] = NewSiteResult(report)
		switch {
		case report.Skipped:
			status.Skipped++
		case report.Err != nil:
			status.Failed++
		default:
			status.Matched++
		}
		if w.metrics != nil {
			w.metrics.ObserveReport(report)
		}
	}
	if err != nil {
		status.Error = err.Error()
	}
	if w.metrics != nil {
		w.metrics.Batches.Inc()
		if err != nil {
			w.metrics.BatchErrors.Inc()
		}
	}
	log.Printf("[BATCH] %d sites in %v: %d matched, %d skipped, %d failed",
		status.Sites, elapsed, status.Matched, status.Skipped, status.Failed)

	w.publish(results, status)
	return results, err
}

// SetPublisher replaces the publisher; nil stops publishing.
func (w *Worker) SetPublisher(p *Publisher) {
	w.mu.Lock()
	w.publisher = p
	w.mu.Unlock()
}

func (w *Worker) publish(results []SiteResult, status BatchStatus) {
	w.mu.RLock()
	p := w.publisher
	w.mu.RUnlock()
	if p == nil {
		return
	}
	for _, r := range results {
		w.countPublish(p.PublishResult(r))
	}
	w.countPublish(p.PublishStatus(status))
}

func (w *Worker) countPublish(err error) {
	result := "ok"
	if err != nil {
		log.Printf("[MQTT] publish failed: %v", err)
		result = "error"
	}
	if w.metrics != nil {
		w.metrics.Published.WithLabelValues(result).Inc()
	}
}

// Handler adapts the worker to MQTT messages. Batches run under ctx.
func (w *Worker) Handler(ctx context.Context) QueryHandler {
	return func(topic string, queries []SiteQuery) {
		if _, err := w.Run(ctx, queries); err != nil {
			log.Printf("[BATCH] batch from %s aborted: %v", topic, err)
		}
	}
}
