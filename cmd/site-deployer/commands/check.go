package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/site-deployer/internal/di"
	"github.com/savaki/site-deployer/internal/services"
	"github.com/urfave/cli/v2"
)

// CheckCommand returns the check command that verifies AWS access without deploying
func CheckCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Verify credentials and access to the bucket and distribution",
		Action: func(c *cli.Context) error {
			ctx := logger.WithContext(c.Context)

			container, err := newContainer(c, logger)
			if err != nil {
				return err
			}
			settings, err := di.Get[*services.Settings](container)
			if err != nil {
				return err
			}
			preflight, err := di.Get[*services.Preflight](container)
			if err != nil {
				return err
			}

			fmt.Printf("Verifying AWS access...\n")
			report, err := preflight.Check(ctx, settings)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Verification successful\n")
			fmt.Printf("  Account: %s\n", report.Account)
			fmt.Printf("  Identity: %s\n", report.ARN)
			fmt.Printf("  Bucket: %s (%s)\n", report.Bucket, report.BucketRegion)
			fmt.Printf("  Distribution: %s %s (%s)\n", settings.DistributionID, report.DistributionDomain, report.DistributionStatus)
			return nil
		},
	}
}
