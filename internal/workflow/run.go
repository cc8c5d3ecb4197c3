package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"rawbids/internal/logging"
	"rawbids/internal/queue"
	"rawbids/internal/sourcedata"
)

const lockFileName = ".rawbids.lock"

// RunSummary reports what a pipeline run did.
type RunSummary struct {
	Discovered int
	Enqueued   int
	Completed  int
	Failed     int
	Skipped    int
	Failures   []string
	Elapsed    time.Duration
}

// Run discovers sessions, enqueues the new ones, and processes every queued
// session to a terminal status. Individual session failures are recorded in
// the summary rather than aborting the run.
func (m *Manager) Run(ctx context.Context) (*RunSummary, error) {
	logger := logging.WithContext(ctx, m.logger)
	start := time.Now()

	lock := flock.New(filepath.Join(m.cfg.Paths.RawDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire rawdata lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another run holds the lock on %s", m.cfg.Paths.RawDir)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if reset, err := m.store.ResetStalled(ctx); err != nil {
		return nil, fmt.Errorf("reset stalled sessions: %w", err)
	} else if reset > 0 {
		logger.Warn("reset stalled sessions from a previous run", logging.Int64("count", reset))
	}

	summary := &RunSummary{}
	if err := m.enqueueDiscovered(ctx, summary); err != nil {
		return nil, err
	}

	items, err := m.store.List(ctx,
		queue.StatusPending, queue.StatusValidated,
		queue.StatusConverted, queue.StatusOrganized)
	if err != nil {
		return nil, fmt.Errorf("list queued sessions: %w", err)
	}
	if err := m.processAll(ctx, items); err != nil {
		return nil, err
	}

	if err := m.tally(ctx, summary); err != nil {
		return nil, err
	}
	summary.Elapsed = time.Since(start)
	logger.Info("run finished",
		logging.Int("discovered", summary.Discovered),
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

func (m *Manager) enqueueDiscovered(ctx context.Context, summary *RunSummary) error {
	logger := logging.WithContext(ctx, m.logger)

	refs, diags, err := sourcedata.Discover(m.cfg.Paths.SourceDir)
	if err != nil {
		return fmt.Errorf("discover sessions: %w", err)
	}
	for _, diag := range diags {
		logger.Warn("discovery", logging.String("detail", diag))
	}
	summary.Discovered = len(refs)

	for _, ref := range refs {
		existing, err := m.store.FindSession(ctx, ref.SubjectID, ref.SessionLabel)
		if err != nil {
			return fmt.Errorf("look up session %s/%s: %w", ref.SubjectID, ref.SessionLabel, err)
		}
		if existing != nil {
			if existing.Status == queue.StatusCompleted || existing.Status == queue.StatusFailed {
				summary.Skipped++
			}
			continue
		}
		if _, err := m.store.NewSession(ctx, ref.SubjectID, ref.SessionLabel, ref.SessionTask, ref.Path); err != nil {
			return fmt.Errorf("enqueue session %s/%s: %w", ref.SubjectID, ref.SessionLabel, err)
		}
		summary.Enqueued++
	}
	return nil
}

// processAll fans sessions out over the configured worker pool. Sessions are
// independent of each other, so ordering between workers does not matter.
func (m *Manager) processAll(ctx context.Context, items []*queue.Item) error {
	workers := m.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}
	if len(items) == 0 {
		return nil
	}

	work := make(chan *queue.Item)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				if err := m.processSession(ctx, item); err != nil {
					logging.WithContext(ctx, m.logger).Error("session processing aborted",
						logging.String("session", item.Label()),
						logging.Error(err))
				}
			}
		}()
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return ctx.Err()
		case work <- item:
		}
	}
	close(work)
	wg.Wait()
	return nil
}

func (m *Manager) tally(ctx context.Context, summary *RunSummary) error {
	completed, err := m.store.List(ctx, queue.StatusCompleted)
	if err != nil {
		return err
	}
	summary.Completed = len(completed)

	failed, err := m.store.List(ctx, queue.StatusFailed)
	if err != nil {
		return err
	}
	summary.Failed = len(failed)
	for _, item := range failed {
		summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %s", item.Label(), item.ErrorMessage))
	}
	return nil
}
