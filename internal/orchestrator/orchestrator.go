// Package orchestrator drives one full collection pass: fan-out over the
// source registry with bounded concurrency, sequential polite paging within
// each source, and the normalize, classify, gate, dedup, notify chain per
// listing. At most one cycle runs at a time.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"propwatch/server/internal/classifier"
	"propwatch/server/internal/dedup"
	"propwatch/server/internal/export"
	"propwatch/server/internal/limits"
	"propwatch/server/internal/models"
	"propwatch/server/internal/normalize"
	"propwatch/server/internal/notify"
	"propwatch/server/internal/sources"
)

// ErrCycleRunning signals that RunCycle was invoked while a previous cycle
// was still in flight. The caller should treat it as a no-op, not a failure.
var ErrCycleRunning = errors.New("collection cycle already running")

// Config tunes one collection pass.
type Config struct {
	MaxPagesPerSource int
	SourceConcurrency int
	PoliteDelay       time.Duration // between page requests to one source
}

// Orchestrator wires the pipeline stages together. The running flag is the
// single-flight guard: it is claimed with a compare-and-swap and always
// released on completion or failure.
type Orchestrator struct {
	registry   *sources.Registry
	classifier *classifier.Classifier
	gate       *limits.Gate
	store      *dedup.Store
	dispatcher *notify.Dispatcher
	exporter   *export.Writer
	cfg        Config
	logger     *logrus.Logger
	running    atomic.Bool
}

// New builds an orchestrator. The exporter may be nil to disable CSV
// artifacts.
func New(
	registry *sources.Registry,
	cls *classifier.Classifier,
	gate *limits.Gate,
	store *dedup.Store,
	dispatcher *notify.Dispatcher,
	exporter *export.Writer,
	cfg Config,
	logger *logrus.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.MaxPagesPerSource < 1 {
		cfg.MaxPagesPerSource = 1
	}
	if cfg.SourceConcurrency < 1 {
		cfg.SourceConcurrency = 4
	}
	return &Orchestrator{
		registry:   registry,
		classifier: cls,
		gate:       gate,
		store:      store,
		dispatcher: dispatcher,
		exporter:   exporter,
		cfg:        cfg,
		logger:     logger,
	}
}

// Running reports whether a cycle is currently in flight.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// RunCycle executes exactly one collection pass and returns its summary.
// A concurrent invocation returns ErrCycleRunning immediately.
func (o *Orchestrator) RunCycle(ctx context.Context) (models.CycleSummary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return models.CycleSummary{}, ErrCycleRunning
	}
	defer o.running.Store(false)
	return o.runLocked(ctx), nil
}

// RunCycleAsync claims the single-flight guard synchronously and runs the
// cycle in the background. It returns ErrCycleRunning without side effects
// when a cycle is already in flight.
func (o *Orchestrator) RunCycleAsync() error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrCycleRunning
	}
	go func() {
		defer o.running.Store(false)
		summary := o.runLocked(context.Background())
		o.logSummary(summary)
	}()
	return nil
}

// runLocked is the cycle body; callers must hold the running flag.
func (o *Orchestrator) runLocked(ctx context.Context) models.CycleSummary {
	summary := models.CycleSummary{StartedAt: time.Now().UTC()}
	adapters := o.registry.Adapters()
	o.logger.WithField("sources", len(adapters)).Info("Starting collection cycle")

	var (
		mu       sync.Mutex
		accepted []models.Listing
		wg       sync.WaitGroup
	)
	sem := make(chan struct{}, o.cfg.SourceConcurrency)

	for _, adapter := range adapters {
		wg.Add(1)
		go func(a sources.Adapter) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result := o.collectSource(ctx, a)

			mu.Lock()
			summary.Fetched += result.fetched
			summary.Classified += result.classified
			summary.PagesAbandoned += result.pagesAbandoned
			accepted = append(accepted, result.accepted...)
			mu.Unlock()
		}(adapter)
	}
	wg.Wait()

	summary.Accepted = len(accepted)
	if len(accepted) > 0 {
		summary.Notified = o.dispatcher.Notify(ctx, accepted)
		if o.exporter != nil {
			if _, err := o.exporter.Write(accepted); err != nil {
				o.logger.WithError(err).Error("CSV export failed")
			}
		}
	}

	summary.Duration = time.Since(summary.StartedAt)
	return summary
}

type sourceResult struct {
	fetched        int
	classified     int
	pagesAbandoned int
	accepted       []models.Listing
}

// collectSource pages through one source sequentially and runs every raw
// record through the pipeline. An abandoned page does not stop the
// remaining pages; listings are processed in discovery order.
func (o *Orchestrator) collectSource(ctx context.Context, a sources.Adapter) sourceResult {
	var result sourceResult
	log := o.logger.WithField("source", a.Name())

	for page := 1; page <= o.cfg.MaxPagesPerSource; page++ {
		if ctx.Err() != nil {
			return result
		}

		raws, err := o.fetchPage(ctx, a, page)
		if err != nil {
			log.WithError(err).WithField("page", page).Warn("Abandoning page")
			result.pagesAbandoned++
		} else {
			for _, raw := range raws {
				result.fetched++
				l := normalize.FromRaw(raw, a.Name())
				o.classifier.Classify(&l)
				if l.PropertyType == "" {
					continue
				}
				result.classified++
				if !l.IsSouth {
					continue
				}
				if !o.gate.Passes(&l) {
					continue
				}
				ok, err := o.store.AcceptIfNew(&l)
				if err != nil {
					log.WithError(err).WithField("link", l.Link).Error("Dedup store failure, dropping listing")
					continue
				}
				if !ok {
					continue
				}
				result.accepted = append(result.accepted, l)
			}
		}

		if page < o.cfg.MaxPagesPerSource {
			select {
			case <-ctx.Done():
				return result
			case <-time.After(o.cfg.PoliteDelay):
			}
		}
	}
	return result
}

// fetchPage shields the pipeline from adapters that panic.
func (o *Orchestrator) fetchPage(ctx context.Context, a sources.Adapter, page int) (raws []models.RawListing, err error) {
	defer func() {
		if r := recover(); r != nil {
			raws = nil
			err = errors.New("adapter panicked")
			o.logger.WithFields(logrus.Fields{
				"source": a.Name(),
				"page":   page,
				"panic":  r,
			}).Error("Recovered adapter panic")
		}
	}()
	return a.FetchPage(ctx, page)
}

func (o *Orchestrator) logSummary(s models.CycleSummary) {
	o.logger.WithFields(logrus.Fields{
		"fetched":         s.Fetched,
		"classified":      s.Classified,
		"accepted":        s.Accepted,
		"notified":        s.Notified,
		"pages_abandoned": s.PagesAbandoned,
		"duration":        s.Duration.String(),
	}).Info("Collection cycle finished")
}

// LogSummary exposes the summary log line for callers that run cycles
// synchronously, keeping the field set identical everywhere.
func (o *Orchestrator) LogSummary(s models.CycleSummary) { o.logSummary(s) }
