// Package afni wraps AFNI's refacer for anatomical defacing.
package afni

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

var commandContext = exec.CommandContext

// Client defines defacing behaviour.
type Client interface {
	Deface(ctx context.Context, inputPath, outputPath string) error
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

// WithTimeout bounds a single refacer invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the @afni_refacer_run command.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "@afni_refacer_run", timeout: 20 * time.Minute}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Deface removes facial structure from inputPath and writes the result to
// outputPath. Missing output after a zero exit is still treated as failure.
func (c *CLI) Deface(ctx context.Context, inputPath, outputPath string) error {
	if inputPath == "" {
		return errors.New("input path required")
	}
	if outputPath == "" {
		return errors.New("output path required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create deface output directory: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"-input", inputPath, "-mode_deface", "-prefix", outputPath}
	cmd := commandContext(runCtx, c.binary, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return fmt.Errorf("refacer timed out after %s", c.timeout)
		}
		return fmt.Errorf("refacer failed: %w: %s", err, bytes.TrimSpace(output.Bytes()))
	}
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("refacer reported success but %s is missing", outputPath)
	}
	return nil
}

var _ Client = (*CLI)(nil)
