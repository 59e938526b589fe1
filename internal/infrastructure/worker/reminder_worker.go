package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/application/service"
)

// ReminderRecorder counts reminder outcomes
type ReminderRecorder interface {
	RemindersSent(sent, skipped, failed int)
}

// ReminderWorker periodically sends SLA reminders for invoices waiting on a manager
type ReminderWorker struct {
	reminders service.ReminderService
	interval  time.Duration
	recorder  ReminderRecorder
	logger    *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun *service.ReminderRun
}

// NewReminderWorker creates a new reminder worker. recorder may be nil.
func NewReminderWorker(reminders service.ReminderService, interval time.Duration, recorder ReminderRecorder, logger *zap.Logger) *ReminderWorker {
	return &ReminderWorker{
		reminders: reminders,
		interval:  interval,
		recorder:  recorder,
		logger:    logger,
	}
}

// Start runs one pass immediately and then one per interval
func (w *ReminderWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return fmt.Errorf("reminder interval must be positive")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return fmt.Errorf("reminder worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx, w.done)

	w.logger.Info("ReminderWorker started", zap.Duration("interval", w.interval))
	return nil
}

// Stop cancels the loop and waits for the current pass to finish
func (w *ReminderWorker) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Name returns the worker name for identification
func (w *ReminderWorker) Name() string {
	return "ReminderWorker"
}

// LastRun returns the result of the most recent successful pass
func (w *ReminderWorker) LastRun() *service.ReminderRun {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun
}

func (w *ReminderWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *ReminderWorker) runOnce(ctx context.Context) {
	run, err := w.reminders.SendDue(ctx)
	if err != nil {
		w.logger.Error("Reminder pass failed", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.lastRun = run
	w.mu.Unlock()

	if w.recorder != nil {
		w.recorder.RemindersSent(run.Sent, run.Skipped, run.Failed)
	}
	if run.Due > 0 {
		w.logger.Info("Reminder pass completed",
			zap.Int("due", run.Due),
			zap.Int("sent", run.Sent),
			zap.Int("skipped", run.Skipped),
			zap.Int("failed", run.Failed))
	}
}
