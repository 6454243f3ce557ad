package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/site-deployer/internal/di"
	"github.com/savaki/site-deployer/internal/orchestrator"
	"github.com/savaki/site-deployer/internal/version"
	"github.com/urfave/cli/v2"
)

// BuildCommand returns the build command that builds and patches without deploying
func BuildCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Build the site and stamp the build output",
		Flags: []cli.Flag{
			rootFlag(),
			&cli.BoolFlag{
				Name:  "skip-verify",
				Usage: "Skip the build.verify steps",
			},
			&cli.StringFlag{
				Name:  "stamp",
				Usage: "Version written over the placeholder (defaults to the current UTC time)",
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

			stamp := c.String("stamp")
			if stamp == "" {
				stamp = version.Now()
			}

			if err := o.Build(ctx, c.Bool("skip-verify")); err != nil {
				return err
			}
			report, err := o.Patch(ctx, stamp)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Build complete, version %s\n", stamp)
			for _, path := range report.Updated {
				fmt.Printf("  Updated %s\n", path)
			}
			return nil
		},
	}
}
