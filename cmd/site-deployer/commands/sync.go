package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/site-deployer/internal/di"
	"github.com/savaki/site-deployer/internal/services"
	"github.com/savaki/site-deployer/internal/uploader"
	"github.com/urfave/cli/v2"
)

// SyncCommand returns the sync command that uploads the existing build output
func SyncCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Mirror the build output to the bucket",
		Description: `Uploads new and modified files and deletes objects that no longer exist
locally (unless sync.delete is false). The build is not run.

Examples:
  # Dry run - show what would change
  site-deployer sync --dry-run

  # Upload
  site-deployer sync`,
		Flags: []cli.Flag{
			rootFlag(),
			dryRunFlag(),
		},
		Action: func(c *cli.Context) error {
			return syncAction(c, logger)
		},
	}
}

func syncAction(c *cli.Context, logger *zerolog.Logger) error {
	ctx := logger.WithContext(c.Context)
	dryRun := c.Bool("dry-run")

	container, err := newContainer(c, logger, di.WithDryRun(dryRun))
	if err != nil {
		return err
	}
	settings, err := di.Get[*services.Settings](container)
	if err != nil {
		return err
	}
	syncer, err := di.Get[uploader.Syncer](container)
	if err != nil {
		return err
	}
	root, err := di.Get[di.Root](container)
	if err != nil {
		return err
	}

	result, err := syncer.Sync(ctx, settings.BuildPath(string(root)))
	if err != nil {
		return err
	}

	switch {
	case !result.Listed && dryRun:
		fmt.Printf("\nDRY RUN: see the aws s3 sync output above\n")
		return nil
	case !result.Listed:
		fmt.Printf("\n✓ Synced to s3://%s/%s\n", settings.Bucket, uploader.NormalizePrefix(settings.Prefix))
		return nil
	case dryRun:
		fmt.Printf("\nDRY RUN: would upload %d and delete %d object(s), %d unchanged\n",
			len(result.Uploaded), len(result.Deleted), len(result.Unchanged))
		return nil
	}

	fmt.Printf("\n✓ Synced to s3://%s/%s\n", settings.Bucket, uploader.NormalizePrefix(settings.Prefix))
	fmt.Printf("  Uploaded: %d, deleted: %d, unchanged: %d\n", len(result.Uploaded), len(result.Deleted), len(result.Unchanged))
	return nil
}
