package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
)

// CLISyncer delegates the mirror to `aws s3 sync`, which picks content types
// itself. It cannot report which keys changed.
type CLISyncer struct {
	Bucket  string
	Prefix  string
	Delete  bool
	DryRun  bool
	Command string // defaults to "aws"
	Stdout  io.Writer
	Stderr  io.Writer
}

// Args returns the aws CLI arguments used to sync dir
func (c *CLISyncer) Args(dir string) []string {
	args := []string{"s3", "sync", dir, fmt.Sprintf("s3://%s/%s", c.Bucket, NormalizePrefix(c.Prefix))}
	if c.Delete {
		args = append(args, "--delete")
	}
	if c.DryRun {
		args = append(args, "--dryrun")
	}
	return args
}

// Sync runs the aws CLI and waits for it to finish.
func (c *CLISyncer) Sync(ctx context.Context, dir string) (*SyncResult, error) {
	logger := zerolog.Ctx(ctx)

	command := c.Command
	if command == "" {
		command = "aws"
	}
	args := c.Args(dir)

	logger.Info().Str("command", command).Strs("args", args).Msg("Running aws s3 sync")

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdout = c.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = c.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s s3 sync failed: %w", command, err)
	}

	logger.Info().Str("bucket", c.Bucket).Msg("Uploaded files to S3")
	return &SyncResult{Listed: false}, nil
}
