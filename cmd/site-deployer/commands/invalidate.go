package commands

import (
	"github.com/rs/zerolog"
	"github.com/savaki/site-deployer/internal/di"
	"github.com/savaki/site-deployer/internal/orchestrator"
	"github.com/savaki/site-deployer/internal/version"
	"github.com/urfave/cli/v2"
)

// InvalidateCommand returns the invalidate command that only invalidates the distribution
func InvalidateCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "invalidate",
		Usage: "Invalidate the CloudFront distribution and wait for completion",
		Description: `Submits a single invalidation batch and polls until CloudFront reports it
Completed. Without --path the invalidation.mode setting decides the paths; "changed"
mode has no upload to compare against here and falls back to "/*".

Examples:
  site-deployer invalidate
  site-deployer invalidate --path /index.html --path /static/*`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "path",
				Usage: "Path to invalidate (can be specified multiple times)",
			},
			&cli.StringFlag{
				Name:  "caller-reference",
				Usage: "Idempotency key for the invalidation (defaults to the current UTC time)",
			},
		},
		Action: func(c *cli.Context) error {
			ctx := logger.WithContext(c.Context)

			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}
			o, err := di.Get[*orchestrator.Orchestrator](container)
			if err != nil {
				return err
			}

			stamp := c.String("caller-reference")
			if stamp == "" {
				stamp = version.Now()
			}

			report, err := o.Run(ctx, orchestrator.Options{
				Stamp:      stamp,
				SkipBuild:  true,
				SkipPatch:  true,
				SkipUpload: true,
				Paths:      c.StringSlice("path"),
			})
			if err != nil {
				return err
			}

			printReport(report)
			return nil
		},
	}
}
