package dcm2niix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// Result lists the files a conversion produced.
type Result struct {
	Images   []string
	Sidecars []string
}

// Client defines DICOM to NIfTI conversion behaviour.
type Client interface {
	Convert(ctx context.Context, seriesDir, outputDir string) (Result, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithTimeout bounds a single converter invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the dcm2niix command-line converter.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "dcm2niix", timeout: 30 * time.Minute}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Convert runs dcm2niix over seriesDir and writes compressed NIfTI images plus
// JSON sidecars into outputDir. The output filenames are whatever the
// converter derived from the protocol name; callers relocate them afterwards.
func (c *CLI) Convert(ctx context.Context, seriesDir, outputDir string) (Result, error) {
	if seriesDir == "" {
		return Result{}, errors.New("series directory required")
	}
	if outputDir == "" {
		return Result{}, errors.New("output directory required")
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"-a", "y", "-ba", "y", "-z", "y", "-o", outputDir, seriesDir}
	cmd := commandContext(runCtx, c.binary, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return Result{}, fmt.Errorf("dcm2niix timed out after %s", c.timeout)
		}
		return Result{}, fmt.Errorf("dcm2niix failed: %w: %s", err, tail(output.String()))
	}

	result, err := collectOutput(outputDir)
	if err != nil {
		return Result{}, err
	}
	if len(result.Images) == 0 {
		return Result{}, fmt.Errorf("dcm2niix produced no NIfTI output in %s: %s", outputDir, tail(output.String()))
	}
	if len(result.Images) != len(result.Sidecars) {
		return Result{}, fmt.Errorf("unbalanced converter output: %d images, %d sidecars", len(result.Images), len(result.Sidecars))
	}
	return result, nil
}

func collectOutput(dir string) (Result, error) {
	images, err := filepath.Glob(filepath.Join(dir, "*.nii.gz"))
	if err != nil {
		return Result{}, err
	}
	sidecars, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return Result{}, err
	}
	sort.Strings(images)
	sort.Strings(sidecars)
	return Result{Images: images, Sidecars: sidecars}, nil
}

func tail(output string) string {
	trimmed := strings.TrimSpace(output)
	if len(trimmed) <= 400 {
		return trimmed
	}
	return "..." + trimmed[len(trimmed)-400:]
}

var _ Client = (*CLI)(nil)
