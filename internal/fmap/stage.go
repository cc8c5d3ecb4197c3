package fmap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"rawbids/internal/config"
	"rawbids/internal/logging"
	"rawbids/internal/queue"
	"rawbids/internal/services"
	"rawbids/internal/stage"
)

// Linker is the stage that records IntendedFor associations on fieldmap
// sidecars after conversion and organization have finished.
type Linker struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewLinker constructs the fieldmap linking stage handler.
func NewLinker(cfg *config.Config, logger *slog.Logger) *Linker {
	return &Linker{cfg: cfg, logger: logging.NewComponentLogger(logger, "linker")}
}

func (l *Linker) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, l.logger)
	item.ErrorMessage = ""
	logger.Info("linking fieldmaps", logging.String("session", item.Label()))
	return nil
}

func (l *Linker) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, l.logger)

	overrides, err := LoadOverrides(l.cfg.Fieldmap.OverridesPath)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "linking", "load overrides",
			fmt.Sprintf("Could not load fieldmap overrides from %s", l.cfg.Fieldmap.OverridesPath), err)
	}

	result, err := Link(l.cfg.Paths.RawDir, item.SubjectID, item.SessionLabel,
		l.cfg.Fieldmap.SplitThreshold, overrides)
	if err != nil {
		return services.Wrap(services.ErrTransient, "linking", "write IntendedFor",
			fmt.Sprintf("Fieldmap linking failed for %s", item.Label()), err)
	}
	item.AppendDiagnostics(result.Diagnostics...)

	logger.Info("fieldmap linking finished",
		logging.String("session", item.Label()),
		logging.Bool("linked", result.Linked))
	return nil
}

func (l *Linker) HealthCheck(ctx context.Context) stage.Health {
	if _, err := os.Stat(l.cfg.Paths.RawDir); err != nil {
		return stage.Unhealthy("linker", fmt.Sprintf("rawdata directory unavailable: %v", err))
	}
	return stage.Healthy("linker")
}

var _ stage.Handler = (*Linker)(nil)
