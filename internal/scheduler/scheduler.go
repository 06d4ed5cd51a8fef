// Package scheduler drives periodic collection cycles. It triggers the
// same orchestrator entry point the on-demand API uses; overlap protection
// lives in the orchestrator's single-flight guard, not here.
package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"propwatch/server/internal/models"
	"propwatch/server/internal/orchestrator"
)

// RunFunc is the collection entry point the scheduler invokes.
type RunFunc func(ctx context.Context) (models.CycleSummary, error)

// Scheduler runs a warm-up delayed first cycle and then one cycle per
// interval until stopped.
type Scheduler struct {
	run      RunFunc
	interval time.Duration
	warmup   time.Duration
	logger   *logrus.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a scheduler. The interval defaults to one hour and the
// warm-up to ten seconds when unset.
func New(run RunFunc, interval, warmup time.Duration, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if warmup < 0 {
		warmup = 10 * time.Second
	}
	return &Scheduler{
		run:      run,
		interval: interval,
		warmup:   warmup,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduling loop in the background.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	select {
	case <-s.stopChan:
		return
	case <-time.After(s.warmup):
	}
	s.trigger()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.trigger()
		}
	}
}

// trigger runs one cycle synchronously so Stop can wait for an in-flight
// pass to finish instead of cutting it off mid-write.
func (s *Scheduler) trigger() {
	summary, err := s.run(context.Background())
	if err != nil {
		if errors.Is(err, orchestrator.ErrCycleRunning) {
			s.logger.Debug("Skipping scheduled cycle, previous cycle still running")
			return
		}
		s.logger.WithError(err).Error("Scheduled cycle failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"fetched":    summary.Fetched,
		"classified": summary.Classified,
		"accepted":   summary.Accepted,
		"notified":   summary.Notified,
		"duration":   summary.Duration.String(),
	}).Info("Scheduled cycle finished")
}

// Stop halts the loop and blocks until any in-flight cycle completes.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
