// Package validate is the pipeline stage that checks session structure and
// builds the manifest later stages consume.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"rawbids/internal/config"
	"rawbids/internal/logging"
	"rawbids/internal/queue"
	"rawbids/internal/services"
	"rawbids/internal/sourcedata"
	"rawbids/internal/stage"
)

// Validator inspects one source session and records what it found on the
// queue item.
type Validator struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewValidator constructs the validation stage handler.
func NewValidator(cfg *config.Config, logger *slog.Logger) *Validator {
	return &Validator{cfg: cfg, logger: logging.NewComponentLogger(logger, "validator")}
}

func (v *Validator) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, v.logger)
	item.ErrorMessage = ""
	logger.Info("starting session validation", logging.String("session", item.Label()))
	return nil
}

func (v *Validator) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, v.logger)
	ref := sourcedata.SessionRef{
		SubjectID:    item.SubjectID,
		SessionLabel: item.SessionLabel,
		SessionTask:  item.SessionTask,
		Path:         item.SourcePath,
	}

	report, err := sourcedata.ValidateSession(ref)
	if err != nil {
		return services.Wrap(services.ErrTransient, "validating", "inspect session",
			"Could not read session directory", err)
	}
	item.AppendDiagnostics(report.Diagnostics...)
	if !report.Passed {
		return services.Wrap(services.ErrValidation, "validating", "check structure",
			fmt.Sprintf("Session layout invalid: %s", item.SourcePath), nil)
	}

	manifest, err := sourcedata.Classify(ref)
	if err != nil {
		return services.Wrap(services.ErrTransient, "validating", "classify files",
			"Could not classify session contents", err)
	}
	item.AppendDiagnostics(manifest.Diagnostics...)
	manifest.Diagnostics = nil

	encoded, err := manifest.Encode()
	if err != nil {
		return services.Wrap(services.ErrTransient, "validating", "encode manifest",
			"Could not serialize session manifest", err)
	}
	item.ManifestJSON = encoded

	logger.Info("session validated",
		logging.String("session", item.Label()),
		logging.Bool("imaging", manifest.HasImaging()),
		logging.Int("behavioral_files", len(manifest.Behavioral)),
		logging.Int("physio_files", len(manifest.Physio)))
	return nil
}

func (v *Validator) HealthCheck(ctx context.Context) stage.Health {
	if _, err := os.Stat(v.cfg.Paths.SourceDir); err != nil {
		return stage.Unhealthy("validator", fmt.Sprintf("source directory unavailable: %v", err))
	}
	return stage.Healthy("validator")
}

var _ stage.Handler = (*Validator)(nil)
