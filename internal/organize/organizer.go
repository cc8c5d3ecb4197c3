// Package organize places behavioral and physiological recordings into the
// rawdata tree and materializes the dataset-level files.
package organize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"rawbids/internal/behavior"
	"rawbids/internal/bids"
	"rawbids/internal/config"
	"rawbids/internal/fileutil"
	"rawbids/internal/logging"
	"rawbids/internal/queue"
	"rawbids/internal/services"
	"rawbids/internal/services/acq"
	"rawbids/internal/sourcedata"
	"rawbids/internal/stage"
)

const datasetName = "EmoRep"

// Organizer is the stage that writes events files, rest ratings, and BIOPAC
// recordings into their BIDS locations.
type Organizer struct {
	cfg    *config.Config
	client acq.Client
	logger *slog.Logger
}

// NewOrganizer constructs an organizer with a CLI-backed acq2txt client.
func NewOrganizer(cfg *config.Config, logger *slog.Logger) *Organizer {
	client := acq.NewCLI(
		acq.WithBinary(cfg.Physio.Binary),
		acq.WithTimeout(time.Duration(cfg.Physio.TimeoutSeconds)*time.Second),
	)
	return NewOrganizerWithDependencies(cfg, client, logger)
}

// NewOrganizerWithDependencies constructs an organizer with an injected
// physio client for testing.
func NewOrganizerWithDependencies(cfg *config.Config, client acq.Client, logger *slog.Logger) *Organizer {
	return &Organizer{cfg: cfg, client: client, logger: logging.NewComponentLogger(logger, "organizer")}
}

func (o *Organizer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, o.logger)
	item.ErrorMessage = ""
	logger.Info("organizing behavioral data", logging.String("session", item.Label()))
	return nil
}

func (o *Organizer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, o.logger)
	manifest, err := stage.ParseManifest(item.ManifestJSON)
	if err != nil {
		return err
	}

	if err := bids.EnsureDatasetFiles(o.cfg.Paths.RawDir, datasetName); err != nil {
		return services.Wrap(services.ErrTransient, "organizing", "write dataset files", "", err)
	}

	placed := 0
	dests := make(map[string]string)
	for _, file := range manifest.Behavioral {
		switch file.Kind {
		case sourcedata.KindTaskEvents:
			n, err := o.placeEvents(item, file, dests)
			if err != nil {
				return err
			}
			placed += n
		case sourcedata.KindRestRatings:
			n, err := o.placeRestRatings(item, file, dests)
			if err != nil {
				return err
			}
			placed += n
		default:
			item.AppendDiagnostics(fmt.Sprintf("behavioral file %s has no destination, skipped", filepath.Base(file.Path)))
		}
	}

	for _, file := range manifest.Physio {
		n, err := o.placePhysio(ctx, item, file, dests)
		if err != nil {
			return err
		}
		placed += n
	}

	logger.Info("behavioral data organized",
		logging.String("session", item.Label()),
		logging.Int("files", placed))
	return nil
}

func (o *Organizer) placeEvents(item *queue.Item, file sourcedata.BehavioralFile, dests map[string]string) (int, error) {
	entity := bids.Entity{
		Subject:  item.SubjectID,
		Session:  item.SessionLabel,
		Task:     file.Task,
		Run:      file.Run,
		Modality: bids.ModalityFunc,
		Suffix:   bids.SuffixEvents,
	}
	rel, err := entity.WithExtension(".tsv").RelPath()
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "organizing", "name events file",
			fmt.Sprintf("Could not derive BIDS name for %s", filepath.Base(file.Path)), err)
	}
	dest := filepath.Join(o.cfg.Paths.RawDir, rel)
	if err := claim(dests, dest, file.Path); err != nil {
		return 0, err
	}
	if _, err := os.Stat(dest); err == nil {
		return 0, nil
	}

	events, err := behavior.BuildEvents(file.Path, file.Task, item.SessionLabel, item.SubjectID)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "organizing", "build events",
			fmt.Sprintf("Could not build events from %s", filepath.Base(file.Path)), err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, services.Wrap(services.ErrTransient, "organizing", "create func dir", "", err)
	}
	if err := behavior.WriteEventsTSV(events, dest); err != nil {
		return 0, services.Wrap(services.ErrTransient, "organizing", "write events",
			fmt.Sprintf("Could not write %s", dest), err)
	}
	sidecar := strings.TrimSuffix(dest, ".tsv") + ".json"
	if err := behavior.WriteEventsJSON(file.Task, sidecar); err != nil {
		return 0, services.Wrap(services.ErrTransient, "organizing", "write events sidecar",
			fmt.Sprintf("Could not write %s", sidecar), err)
	}
	return 1, nil
}

// placeRestRatings writes the resting-state ratings table. The export date is
// part of the filename, so it is built directly rather than through Entity.
func (o *Organizer) placeRestRatings(item *queue.Item, file sourcedata.BehavioralFile, dests map[string]string) (int, error) {
	name := fmt.Sprintf("sub-%s_ses-%s_rest-ratings", item.SubjectID, item.SessionLabel)
	if file.Date != "" {
		name += "_" + file.Date
	}
	dest := filepath.Join(o.cfg.Paths.RawDir,
		"sub-"+item.SubjectID, "ses-"+item.SessionLabel, string(bids.ModalityBeh), name+".tsv")
	if err := claim(dests, dest, file.Path); err != nil {
		return 0, err
	}
	if _, err := os.Stat(dest); err == nil {
		return 0, nil
	}

	ratings, err := behavior.BuildRestRatings(file.Path)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "organizing", "build rest ratings",
			fmt.Sprintf("Could not build ratings from %s", filepath.Base(file.Path)), err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, services.Wrap(services.ErrTransient, "organizing", "create beh dir", "", err)
	}
	if err := behavior.WriteRestRatings(ratings, dest); err != nil {
		return 0, services.Wrap(services.ErrTransient, "organizing", "write rest ratings",
			fmt.Sprintf("Could not write %s", dest), err)
	}
	return 1, nil
}

func (o *Organizer) placePhysio(ctx context.Context, item *queue.Item, file sourcedata.PhysioFile, dests map[string]string) (int, error) {
	entity := bids.Entity{
		Subject:   item.SubjectID,
		Session:   item.SessionLabel,
		Task:      file.Task,
		Run:       file.Run,
		Recording: "biopack",
		Modality:  bids.ModalityPhysio,
		Suffix:    bids.SuffixPhysio,
	}
	rel, err := entity.WithExtension(".acq").RelPath()
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "organizing", "name physio file",
			fmt.Sprintf("Could not derive BIDS name for %s", filepath.Base(file.Path)), err)
	}
	dest := filepath.Join(o.cfg.Paths.RawDir, rel)
	if err := claim(dests, dest, file.Path); err != nil {
		return 0, err
	}
	if _, err := os.Stat(dest); err == nil {
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, services.Wrap(services.ErrTransient, "organizing", "create phys dir", "", err)
	}
	if err := fileutil.CopyFile(file.Path, dest); err != nil {
		return 0, services.Wrap(services.ErrTransient, "organizing", "place physio",
			fmt.Sprintf("Could not place %s", dest), err)
	}

	txt := strings.TrimSuffix(dest, ".acq") + ".txt"
	if err := o.client.Convert(ctx, dest, txt); err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "organizing", "run acq2txt",
			fmt.Sprintf("Could not export %s", filepath.Base(dest)), err)
	}
	return 1, nil
}

func (o *Organizer) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(o.cfg.Physio.Binary); err != nil {
		return stage.Unhealthy("organizer", fmt.Sprintf("acq2txt not available: %v", err))
	}
	if _, err := os.Stat(o.cfg.Paths.RawDir); err != nil {
		return stage.Unhealthy("organizer", fmt.Sprintf("rawdata directory unavailable: %v", err))
	}
	return stage.Healthy("organizer")
}

func claim(dests map[string]string, dest, source string) error {
	if prior, ok := dests[dest]; ok {
		return services.Wrap(services.ErrValidation, "organizing", "check collisions",
			fmt.Sprintf("%s and %s both map to %s", filepath.Base(prior), filepath.Base(source), filepath.Base(dest)), nil)
	}
	dests[dest] = source
	return nil
}

var _ stage.Handler = (*Organizer)(nil)
