package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/savaki/site-deployer/internal/di"
	"github.com/savaki/site-deployer/internal/orchestrator"
	"github.com/urfave/cli/v2"
)

func rootFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "root",
		Aliases: []string{"r"},
		Usage:   "Project root the build runs in",
		Value:   ".",
	}
}

func dryRunFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Show what would be uploaded, deleted and invalidated without doing it",
	}
}

// newContainer loads <root>/.env and builds the dependency container from the global flags
func newContainer(c *cli.Context, logger *zerolog.Logger, opts ...di.Option) (di.Container, error) {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	if err := loadDotEnv(root); err != nil {
		return nil, err
	}
	logger.Debug().Str("root", root).Msg("Resolved project root")

	opts = append([]di.Option{
		di.WithSettingsSource(c.String("settings")),
		di.WithRegion(c.String("region")),
		di.WithProfile(c.String("profile")),
		di.WithRoot(root),
	}, opts...)
	return di.New(logger.WithContext(c.Context), opts...)
}

// loadDotEnv loads root/.env when present; variables already set win
func loadDotEnv(root string) error {
	path := filepath.Join(root, ".env")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func printReport(report *orchestrator.Report) {
	fmt.Printf("\n✓ Version %s\n", report.Stamp)
	if p := report.Preflight; p != nil {
		fmt.Printf("  Account: %s\n", p.Account)
	}
	if p := report.Patch; p != nil {
		fmt.Printf("  Patched: %d of %d file(s)\n", len(p.Updated), p.Scanned)
	}
	if s := report.Sync; s != nil {
		if s.Listed {
			fmt.Printf("  Uploaded: %d, deleted: %d, unchanged: %d\n", len(s.Uploaded), len(s.Deleted), len(s.Unchanged))
		} else {
			fmt.Printf("  Uploaded with aws s3 sync\n")
		}
	}
	if i := report.Invalidation; i != nil {
		fmt.Printf("  Invalidation %s: %s after %d poll(s)\n", i.ID, i.Status, i.Attempts)
	} else if len(report.Paths) > 0 {
		fmt.Printf("  Invalidation paths: %v\n", report.Paths)
	}
}
