package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rawbids/internal/config"
	"rawbids/internal/convert"
	"rawbids/internal/fmap"
	"rawbids/internal/logging"
	"rawbids/internal/organize"
	"rawbids/internal/queue"
	"rawbids/internal/services"
	"rawbids/internal/stage"
	"rawbids/internal/validate"
)

// pipelineStage binds a stage handler to the queue statuses it moves items
// between.
type pipelineStage struct {
	name             string
	readyStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
	handler          stage.Handler
}

// Manager advances queued sessions through the pipeline stages in order.
type Manager struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	stages []pipelineStage
}

// NewManager constructs a manager with the production stage handlers.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithHandlers(cfg, store, logger,
		validate.NewValidator(cfg, logger),
		convert.NewConverter(cfg, logger),
		organize.NewOrganizer(cfg, logger),
		fmap.NewLinker(cfg, logger))
}

// NewManagerWithHandlers constructs a manager with injected stage handlers
// for testing.
func NewManagerWithHandlers(cfg *config.Config, store *queue.Store, logger *slog.Logger, validator, converter, organizer, linker stage.Handler) *Manager {
	return &Manager{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "workflow"),
		stages: []pipelineStage{
			{"validate", queue.StatusPending, queue.StatusValidating, queue.StatusValidated, validator},
			{"convert", queue.StatusValidated, queue.StatusConverting, queue.StatusConverted, converter},
			{"organize", queue.StatusConverted, queue.StatusOrganizing, queue.StatusOrganized, organizer},
			{"link", queue.StatusOrganized, queue.StatusLinking, queue.StatusCompleted, linker},
		},
	}
}

// Health reports the readiness of every stage handler.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(m.stages))
	for _, ps := range m.stages {
		checks = append(checks, ps.handler.HealthCheck(ctx))
	}
	return checks
}

func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	for _, ps := range m.stages {
		if ps.readyStatus == status {
			return ps, true
		}
	}
	return pipelineStage{}, false
}

// processSession drives one item from its current status to a terminal one.
// Stage failures mark the item failed and stop the session without touching
// the rest of the queue.
func (m *Manager) processSession(ctx context.Context, item *queue.Item) error {
	requestID := uuid.NewString()
	ctx = services.WithRequestID(ctx, requestID)
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithSubject(ctx, item.SubjectID)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ps, ok := m.stageForStatus(item.Status)
		if !ok {
			if item.IsTerminal() {
				return nil
			}
			return fmt.Errorf("no stage handles status %q", item.Status)
		}
		if err := m.runStage(ctx, ps, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			if item.Status == queue.StatusFailed {
				return nil
			}
			return err
		}
	}
}

func (m *Manager) runStage(ctx context.Context, ps pipelineStage, item *queue.Item) error {
	ctx = services.WithStage(ctx, ps.name)
	logger := logging.WithContext(ctx, m.logger)
	start := time.Now()

	item.Status = ps.processingStatus
	if err := m.store.Update(ctx, item); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	if err := ps.handler.Prepare(ctx, item); err != nil {
		return m.failStage(ctx, ps, item, err)
	}
	if err := m.store.Update(ctx, item); err != nil {
		return fmt.Errorf("persist stage preparation: %w", err)
	}

	if err := ps.handler.Execute(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("stage interrupted by shutdown", logging.String("stage", ps.name))
			return err
		}
		return m.failStage(ctx, ps, item, err)
	}

	item.Status = ps.doneStatus
	if err := m.store.Update(ctx, item); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}
	logger.Info("stage completed",
		logging.String("stage", ps.name),
		logging.String("session", item.Label()),
		logging.String("next_status", string(item.Status)),
		logging.Duration("stage_duration", time.Since(start)))
	return nil
}

// failStage records a stage failure on the item. The returned error is the
// original failure so callers can distinguish cancellation.
func (m *Manager) failStage(ctx context.Context, ps pipelineStage, item *queue.Item, stageErr error) error {
	logger := logging.WithContext(ctx, m.logger)
	logger.Error("stage failed",
		logging.String("stage", ps.name),
		logging.String("session", item.Label()),
		logging.Error(stageErr))

	item.SetFailed(stageErr.Error())
	if err := m.store.Update(ctx, item); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
	return stageErr
}
