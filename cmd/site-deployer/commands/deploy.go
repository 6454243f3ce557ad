package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/site-deployer/internal/di"
	"github.com/savaki/site-deployer/internal/orchestrator"
	"github.com/savaki/site-deployer/internal/version"
	"github.com/urfave/cli/v2"
)

// DeployCommand returns the deploy command that runs the full pipeline
func DeployCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "deploy",
		Usage: "Build, upload and invalidate the site",
		Description: `Runs the deploy pipeline in order, stopping at the first failure:

  1. build      - run build.verify then build.steps in the project root
  2. patch      - replace VERSION_STRING in the build output with a UTC timestamp
  3. upload     - mirror the build output to the bucket
  4. invalidate - invalidate the CloudFront distribution and wait for completion

Examples:
  # Full deploy
  site-deployer deploy

  # Skip lint/typecheck and preview the upload
  site-deployer deploy --skip-verify --dry-run

  # Invalidate only the objects that changed
  site-deployer deploy --mode changed`,
		Flags: []cli.Flag{
			rootFlag(),
			dryRunFlag(),
			&cli.BoolFlag{
				Name:  "skip-build",
				Usage: "Skip the build steps and deploy the existing build output",
			},
			&cli.BoolFlag{
				Name:  "skip-verify",
				Usage: "Skip the build.verify steps",
			},
			&cli.BoolFlag{
				Name:  "skip-patch",
				Usage: "Leave the version placeholder in the build output",
			},
			&cli.BoolFlag{
				Name:  "skip-upload",
				Usage: "Skip uploading to the bucket",
			},
			&cli.BoolFlag{
				Name:  "skip-invalidate",
				Usage: "Skip the CloudFront invalidation",
			},
			&cli.BoolFlag{
				Name:  "preflight",
				Usage: "Verify credentials, bucket and distribution before building",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Invalidation mode override (wildcard, explicit, changed)",
			},
			&cli.StringSliceFlag{
				Name:  "path",
				Usage: "Path to invalidate (can be specified multiple times)",
			},
		},
		Action: func(c *cli.Context) error {
			return deployAction(c, logger)
		},
	}
}

func deployAction(c *cli.Context, logger *zerolog.Logger) error {
	ctx := logger.WithContext(c.Context)

	container, err := newContainer(c, logger, di.WithDryRun(c.Bool("dry-run")))
	if err != nil {
		return err
	}
	o, err := di.Get[*orchestrator.Orchestrator](container)
	if err != nil {
		return err
	}

	report, err := o.Run(ctx, orchestrator.Options{
		Stamp:            version.Now(),
		Preflight:        c.Bool("preflight"),
		SkipBuild:        c.Bool("skip-build"),
		SkipVerify:       c.Bool("skip-verify"),
		SkipPatch:        c.Bool("skip-patch"),
		SkipUpload:       c.Bool("skip-upload"),
		SkipInvalidate:   c.Bool("skip-invalidate"),
		DryRun:           c.Bool("dry-run"),
		InvalidationMode: c.String("mode"),
		Paths:            c.StringSlice("path"),
	})
	if err != nil {
		return err
	}

	printReport(report)
	if c.Bool("dry-run") {
		fmt.Printf("\nDRY RUN: no changes were made to the bucket or distribution\n")
	}
	return nil
}
