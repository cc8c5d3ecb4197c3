// Package convert turns sorted DICOM series into BIDS-named NIfTI files and
// drives the optional defacing of anatomical images.
package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"rawbids/internal/bids"
	"rawbids/internal/config"
	"rawbids/internal/dicomsort"
	"rawbids/internal/fileutil"
	"rawbids/internal/logging"
	"rawbids/internal/queue"
	"rawbids/internal/services"
	"rawbids/internal/services/afni"
	"rawbids/internal/services/dcm2niix"
	"rawbids/internal/stage"
)

// Converter is the stage that runs dcm2niix over each DICOM series and places
// the outputs under rawdata with BIDS entity names.
type Converter struct {
	cfg     *config.Config
	client  dcm2niix.Client
	refacer afni.Client
	logger  *slog.Logger
}

// NewConverter constructs a converter with CLI-backed tool clients.
func NewConverter(cfg *config.Config, logger *slog.Logger) *Converter {
	client := dcm2niix.NewCLI(
		dcm2niix.WithBinary(cfg.Conversion.Binary),
		dcm2niix.WithTimeout(time.Duration(cfg.Conversion.TimeoutSeconds)*time.Second),
	)
	refacer := afni.NewCLI(
		afni.WithBinary(cfg.Deface.Binary),
		afni.WithTimeout(time.Duration(cfg.Deface.TimeoutSeconds)*time.Second),
	)
	return NewConverterWithDependencies(cfg, client, refacer, logger)
}

// NewConverterWithDependencies constructs a converter with injected clients
// for testing.
func NewConverterWithDependencies(cfg *config.Config, client dcm2niix.Client, refacer afni.Client, logger *slog.Logger) *Converter {
	return &Converter{
		cfg:     cfg,
		client:  client,
		refacer: refacer,
		logger:  logging.NewComponentLogger(logger, "converter"),
	}
}

func (c *Converter) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	item.ErrorMessage = ""
	logger.Info("starting DICOM conversion", logging.String("session", item.Label()))
	return nil
}

func (c *Converter) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	manifest, err := stage.ParseManifest(item.ManifestJSON)
	if err != nil {
		return err
	}
	if !manifest.HasImaging() {
		logger.Info("session has no DICOM data, skipping conversion",
			logging.String("session", item.Label()))
		return nil
	}

	sessionDir := filepath.Join(c.cfg.Paths.RawDir,
		"sub-"+item.SubjectID, "ses-"+item.SessionLabel)

	converted, err := dirHasEntries(filepath.Join(sessionDir, string(bids.ModalityAnat)))
	if err != nil {
		return services.Wrap(services.ErrTransient, "converting", "inspect rawdata",
			"Could not inspect existing conversion output", err)
	}
	if converted {
		logger.Info("conversion output already present, skipping dcm2niix",
			logging.String("session", item.Label()))
	} else {
		if err := c.convertSeries(ctx, item, manifest.DicomDir); err != nil {
			return err
		}
	}

	return c.deface(ctx, item, sessionDir)
}

func (c *Converter) convertSeries(ctx context.Context, item *queue.Item, dicomDir string) error {
	logger := logging.WithContext(ctx, c.logger)

	series, err := dicomsort.BySeries(dicomDir)
	if err != nil {
		return services.Wrap(services.ErrValidation, "converting", "sort series",
			"Could not group DICOM files by series", err)
	}

	type plan struct {
		series dicomsort.Series
		entity bids.Entity
	}
	plans := make([]plan, 0, len(series))
	seen := make(map[string]string)
	for _, s := range series {
		entity, recognized, skip := classifySeries(s.Protocol, item.SubjectID, item.SessionLabel, item.SessionTask)
		if skip {
			logger.Debug("ignoring scout series", logging.String("protocol", s.Protocol))
			continue
		}
		if !recognized {
			item.AppendDiagnostics(fmt.Sprintf("unrecognized DICOM series %q, skipped", s.Protocol))
			continue
		}
		base, err := entity.Basename()
		if err != nil {
			return services.Wrap(services.ErrValidation, "converting", "name output",
				fmt.Sprintf("Could not derive BIDS name for series %q", s.Protocol), err)
		}
		if prior, dup := seen[base]; dup {
			return services.Wrap(services.ErrValidation, "converting", "check collisions",
				fmt.Sprintf("Series %q and %q both map to %s", prior, s.Protocol, base), nil)
		}
		seen[base] = s.Protocol
		plans = append(plans, plan{series: s, entity: entity})
	}

	if len(plans) == 0 {
		return services.Wrap(services.ErrValidation, "converting", "plan series",
			"No convertible DICOM series found in "+dicomDir, nil)
	}

	converted := 0
	for _, p := range plans {
		err := c.convertOne(ctx, p.series, p.entity)
		if err == nil {
			converted++
			continue
		}
		if ctx.Err() != nil {
			return err
		}
		// A tool failure is local to one series. Record it and keep
		// converting so the rest of the session still gets built.
		if errors.Is(err, services.ErrExternalTool) {
			logger.Warn("series conversion failed, continuing",
				logging.String("protocol", p.series.Protocol),
				logging.Error(err))
			item.AppendDiagnostics(fmt.Sprintf("series %q failed conversion: %v", p.series.Protocol, err))
			continue
		}
		return err
	}

	logger.Info("conversion finished",
		logging.String("session", item.Label()),
		logging.Int("converted", converted),
		logging.Int("failed", len(plans)-converted))
	return nil
}

func (c *Converter) convertOne(ctx context.Context, s dicomsort.Series, entity bids.Entity) error {
	tmp, err := os.MkdirTemp("", "rawbids-dcm2niix-")
	if err != nil {
		return services.Wrap(services.ErrTransient, "converting", "create scratch dir", "", err)
	}
	defer os.RemoveAll(tmp)

	result, err := c.client.Convert(ctx, s.Dir, tmp)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "converting", "run dcm2niix",
			fmt.Sprintf("Conversion failed for series %q", s.Protocol), err)
	}
	if len(result.Images) != 1 {
		return services.Wrap(services.ErrExternalTool, "converting", "collect output",
			fmt.Sprintf("Series %q produced %d images, expected 1", s.Protocol, len(result.Images)), nil)
	}

	rel, err := entity.WithExtension(".nii.gz").RelPath()
	if err != nil {
		return services.Wrap(services.ErrValidation, "converting", "name output", "", err)
	}
	imageDest := filepath.Join(c.cfg.Paths.RawDir, rel)
	sidecarDest := sidecarPath(imageDest)

	if err := fileutil.CopyFileVerified(result.Images[0], imageDest); err != nil {
		return services.Wrap(services.ErrTransient, "converting", "place image",
			fmt.Sprintf("Could not place %s", imageDest), err)
	}
	if err := fileutil.CopyFile(result.Sidecars[0], sidecarDest); err != nil {
		return services.Wrap(services.ErrTransient, "converting", "place sidecar",
			fmt.Sprintf("Could not place %s", sidecarDest), err)
	}

	if entity.Suffix == bids.SuffixBold {
		if err := setTaskName(sidecarDest, entity.Task); err != nil {
			return services.Wrap(services.ErrTransient, "converting", "annotate sidecar",
				fmt.Sprintf("Could not record TaskName in %s", sidecarDest), err)
		}
	}
	return nil
}

// deface runs the AFNI refacer over the session T1w when enabled, writing the
// result under derivatives. A session without an anatomical image is not an
// error here.
func (c *Converter) deface(ctx context.Context, item *queue.Item, sessionDir string) error {
	if !c.cfg.Deface.Enabled {
		return nil
	}
	logger := logging.WithContext(ctx, c.logger)

	t1w := filepath.Join(sessionDir, string(bids.ModalityAnat),
		fmt.Sprintf("sub-%s_ses-%s_T1w.nii.gz", item.SubjectID, item.SessionLabel))
	if _, err := os.Stat(t1w); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return services.Wrap(services.ErrTransient, "converting", "locate anatomical", "", err)
	}

	output := filepath.Join(c.cfg.Paths.DerivativesDir, "deface",
		"sub-"+item.SubjectID, "ses-"+item.SessionLabel,
		fmt.Sprintf("sub-%s_ses-%s_T1w_defaced.nii.gz", item.SubjectID, item.SessionLabel))
	if _, err := os.Stat(output); err == nil {
		logger.Debug("defaced image already present", logging.String("path", output))
		return nil
	}

	if err := c.refacer.Deface(ctx, t1w, output); err != nil {
		return services.Wrap(services.ErrExternalTool, "converting", "run refacer",
			fmt.Sprintf("Defacing failed for %s", item.Label()), err)
	}
	logger.Info("anatomical defaced", logging.String("session", item.Label()))
	return nil
}

func (c *Converter) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(c.cfg.Conversion.Binary); err != nil {
		return stage.Unhealthy("converter", fmt.Sprintf("dcm2niix not available: %v", err))
	}
	if c.cfg.Deface.Enabled {
		if _, err := exec.LookPath(c.cfg.Deface.Binary); err != nil {
			return stage.Unhealthy("converter", fmt.Sprintf("refacer not available: %v", err))
		}
	}
	return stage.Healthy("converter")
}

var (
	scoutSeries = regexp.MustCompile(`(?i)localizer|scout`)
	anatSeries  = regexp.MustCompile(`(?i)EmoRep_anat`)
	taskSeries  = regexp.MustCompile(`(?i)EmoRep_run_?(\d+)`)
	restSeries  = regexp.MustCompile(`(?i)Rest_run_?(\d+)`)
	fmapSeries  = regexp.MustCompile(`(?i)Field_Map_P_A(?:_run_?(\d+))?`)
)

// classifySeries maps a scanner protocol name onto the BIDS entity its output
// should carry. Scout acquisitions are dropped, anything else unrecognized is
// reported so the operator can extend the protocol table.
func classifySeries(protocol, subjectID, sessionLabel, sessionTask string) (entity bids.Entity, recognized, skip bool) {
	entity = bids.Entity{Subject: subjectID, Session: sessionLabel}

	switch {
	case scoutSeries.MatchString(protocol):
		return bids.Entity{}, false, true
	case anatSeries.MatchString(protocol):
		entity.Modality = bids.ModalityAnat
		entity.Suffix = bids.SuffixT1w
		return entity, true, false
	case taskSeries.MatchString(protocol):
		m := taskSeries.FindStringSubmatch(protocol)
		entity.Modality = bids.ModalityFunc
		entity.Suffix = bids.SuffixBold
		entity.Task = sessionTask
		entity.Run = mustAtoi(m[1])
		return entity, true, false
	case restSeries.MatchString(protocol):
		m := restSeries.FindStringSubmatch(protocol)
		entity.Modality = bids.ModalityFunc
		entity.Suffix = bids.SuffixBold
		entity.Task = bids.TaskRest
		entity.Run = mustAtoi(m[1])
		return entity, true, false
	case fmapSeries.MatchString(protocol):
		m := fmapSeries.FindStringSubmatch(protocol)
		entity.Modality = bids.ModalityFmap
		entity.Suffix = bids.SuffixEpi
		entity.Acquisition = "rpe"
		entity.Direction = "PA"
		if m[1] != "" {
			entity.Run = mustAtoi(m[1])
		}
		return entity, true, false
	}
	return bids.Entity{}, false, false
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func sidecarPath(imagePath string) string {
	base := imagePath
	for ext := filepath.Ext(base); ext == ".gz" || ext == ".nii"; ext = filepath.Ext(base) {
		base = base[:len(base)-len(ext)]
	}
	return base + ".json"
}

// setTaskName adds the TaskName field required for bold sidecars, preserving
// everything dcm2niix wrote.
func setTaskName(sidecarPath, task string) error {
	payload, err := os.ReadFile(sidecarPath)
	if err != nil {
		return err
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("parse sidecar: %w", err)
	}
	fields["TaskName"] = task
	updated, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sidecarPath, append(updated, '\n'), 0o644)
}

func dirHasEntries(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return len(entries) > 0, nil
}

var _ stage.Handler = (*Converter)(nil)
