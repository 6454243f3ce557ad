package main

import (
	"context"
	"errors"
	"os"

	"github.com/savaki/site-deployer/cmd/site-deployer/commands"
	"github.com/savaki/site-deployer/internal/builder"
	"github.com/savaki/site-deployer/internal/di"
	"github.com/savaki/site-deployer/internal/services"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger(os.Getenv("SITE_DEPLOYER_LOG_LEVEL"))
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "site-deployer",
		Usage: "Build a static site and publish it to S3 and CloudFront",
		Description: `Builds the site, stamps the build output with a unique version, mirrors it
to an S3 bucket and invalidates the CloudFront distribution in front of it.

Settings are read from ~/.site-deployer.yaml by default:

  bucket: my-site-bucket
  cloudfront_distribution_id: E2ABC123`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "settings",
				Aliases: []string{"s"},
				Usage:   "Settings file path, or ssm:/path to read from Parameter Store",
				Value:   services.DefaultSettingsPath(),
				EnvVars: []string{"SITE_DEPLOYER_SETTINGS"},
			},
			&cli.StringFlag{
				Name:    "region",
				Usage:   "AWS region",
				EnvVars: []string{"AWS_REGION"},
			},
			&cli.StringFlag{
				Name:    "profile",
				Usage:   "AWS shared config profile",
				EnvVars: []string{"AWS_PROFILE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"SITE_DEPLOYER_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger = di.ProvideLogger(c.String("log-level"))
			c.Context = logger.WithContext(c.Context)
			return nil
		},
		Commands: []*cli.Command{
			commands.DeployCommand(&logger),
			commands.BuildCommand(&logger),
			commands.SyncCommand(&logger),
			commands.InvalidateCommand(&logger),
			commands.CheckCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		var stepErr *builder.StepError
		if errors.As(err, &stepErr) {
			logger.Error().
				Str("step", stepErr.Step.Name).
				Int("exit_code", stepErr.ExitCode).
				Msg("Build step failed")
		}
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
