package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateFieldmap(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SourceDir) == "" {
		return errors.New("paths.source_dir must be set")
	}
	if strings.TrimSpace(c.Paths.RawDir) == "" {
		return errors.New("paths.raw_dir must be set")
	}
	if c.Paths.SourceDir == c.Paths.RawDir {
		return errors.New("paths.raw_dir must differ from paths.source_dir")
	}
	return nil
}

func (c *Config) validateTools() error {
	if err := ensurePositiveMap(map[string]int{
		"conversion.timeout_seconds": c.Conversion.TimeoutSeconds,
		"deface.timeout_seconds":     c.Deface.TimeoutSeconds,
		"physio.timeout_seconds":     c.Physio.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if strings.TrimSpace(c.Conversion.Binary) == "" {
		return errors.New("conversion.binary must be set")
	}
	if c.Deface.Enabled && strings.TrimSpace(c.Deface.Binary) == "" {
		return errors.New("deface.binary must be set when deface.enabled is true")
	}
	return nil
}

func (c *Config) validateFieldmap() error {
	if c.Fieldmap.SplitThreshold <= 0 {
		return errors.New("fieldmap.split_threshold must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
