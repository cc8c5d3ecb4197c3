package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTools(); err != nil {
		return err
	}
	if err := c.normalizeFieldmap(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SourceDir, err = expandPath(c.Paths.SourceDir); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if c.Paths.RawDir, err = expandPath(c.Paths.RawDir); err != nil {
		return fmt.Errorf("paths.raw_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DerivativesDir) == "" {
		c.Paths.DerivativesDir = defaultDerivativesDir
	}
	if c.Paths.DerivativesDir, err = expandPath(c.Paths.DerivativesDir); err != nil {
		return fmt.Errorf("paths.derivatives_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.QueueDBPath) == "" {
		c.Paths.QueueDBPath = defaultQueueDBPath
	}
	if c.Paths.QueueDBPath, err = expandPath(c.Paths.QueueDBPath); err != nil {
		return fmt.Errorf("paths.queue_db_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() error {
	c.Conversion.Binary = strings.TrimSpace(c.Conversion.Binary)
	if c.Conversion.Binary == "" {
		c.Conversion.Binary = defaultConversionBinary
	}
	if c.Conversion.TimeoutSeconds <= 0 {
		c.Conversion.TimeoutSeconds = defaultConversionTimeout
	}
	c.Deface.Binary = strings.TrimSpace(c.Deface.Binary)
	if c.Deface.Binary == "" {
		c.Deface.Binary = defaultDefaceBinary
	}
	if c.Deface.TimeoutSeconds <= 0 {
		c.Deface.TimeoutSeconds = defaultDefaceTimeout
	}
	c.Physio.Binary = strings.TrimSpace(c.Physio.Binary)
	if c.Physio.Binary == "" {
		c.Physio.Binary = defaultPhysioBinary
	}
	if c.Physio.TimeoutSeconds <= 0 {
		c.Physio.TimeoutSeconds = defaultPhysioTimeout
	}
	return nil
}

func (c *Config) normalizeFieldmap() error {
	var err error
	if c.Fieldmap.SplitThreshold <= 0 {
		c.Fieldmap.SplitThreshold = defaultFieldmapSplitThreshold
	}
	if strings.TrimSpace(c.Fieldmap.OverridesPath) == "" {
		c.Fieldmap.OverridesPath = defaultFieldmapOverridesPath
	}
	if c.Fieldmap.OverridesPath, err = expandPath(c.Fieldmap.OverridesPath); err != nil {
		return fmt.Errorf("fieldmap.overrides_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkflowWorkers
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
