// Package acq wraps the BIOPAC AcqKnowledge text exporter used for
// physiological recordings.
package acq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

var commandContext = exec.CommandContext

// Client defines acq-to-text conversion behaviour.
type Client interface {
	Convert(ctx context.Context, acqPath, txtPath string) error
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

// WithTimeout bounds a single conversion.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the acq2txt command.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "acq2txt", timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Convert exports the channel data of acqPath to tab-separated text at
// txtPath. Truncated recordings surface as tool failures, not panics; the
// caller decides whether that is fatal for the session.
func (c *CLI) Convert(ctx context.Context, acqPath, txtPath string) error {
	if acqPath == "" {
		return errors.New("acq path required")
	}
	if txtPath == "" {
		return errors.New("txt path required")
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"--outfile=" + txtPath, acqPath}
	cmd := commandContext(runCtx, c.binary, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return fmt.Errorf("acq2txt timed out after %s", c.timeout)
		}
		return fmt.Errorf("acq2txt failed: %w: %s", err, bytes.TrimSpace(output.Bytes()))
	}
	if _, err := os.Stat(txtPath); err != nil {
		return fmt.Errorf("acq2txt reported success but %s is missing", txtPath)
	}
	return nil
}

var _ Client = (*CLI)(nil)
