// Package orchestrator runs the deploy pipeline: build, patch, upload, invalidate.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/savaki/site-deployer/internal/builder"
	"github.com/savaki/site-deployer/internal/constants"
	"github.com/savaki/site-deployer/internal/invalidator"
	"github.com/savaki/site-deployer/internal/patcher"
	"github.com/savaki/site-deployer/internal/services"
	"github.com/savaki/site-deployer/internal/uploader"
	"github.com/savaki/site-deployer/internal/utils"
	"github.com/savaki/site-deployer/internal/version"
)

// StepRunner runs build steps in order
type StepRunner interface {
	Run(ctx context.Context, steps ...builder.Step) error
}

// CacheInvalidator invalidates CDN paths and waits for completion
type CacheInvalidator interface {
	Invalidate(ctx context.Context, paths []string, callerReference string) (*invalidator.Result, error)
}

// PreflightChecker verifies access to the AWS resources a deploy touches
type PreflightChecker interface {
	Check(ctx context.Context, settings *services.Settings) (*services.PreflightReport, error)
}

// Options selects the stages of a single run
type Options struct {
	Stamp          string // run timestamp; generated when empty
	Preflight      bool
	SkipBuild      bool
	SkipVerify     bool
	SkipPatch      bool
	SkipUpload     bool
	SkipInvalidate bool
	DryRun         bool // plan remote changes without making them

	// InvalidationMode and Paths override the settings when set
	InvalidationMode string
	Paths            []string
}

// Report collects the outcome of each stage that ran
type Report struct {
	Stamp        string
	Preflight    *services.PreflightReport
	Patch        *patcher.Report
	Sync         *uploader.SyncResult
	Paths        []string // paths selected for invalidation
	Invalidation *invalidator.Result
}

// Orchestrator runs the deploy stages sequentially for one site
type Orchestrator struct {
	settings    *services.Settings
	root        string
	runner      StepRunner
	syncer      uploader.Syncer
	invalidator CacheInvalidator
	preflight   PreflightChecker
}

// New creates a new Orchestrator for the project rooted at root
func New(settings *services.Settings, root string, runner StepRunner, syncer uploader.Syncer, invalidator CacheInvalidator, preflight PreflightChecker) *Orchestrator {
	return &Orchestrator{
		settings:    settings,
		root:        root,
		runner:      runner,
		syncer:      syncer,
		invalidator: invalidator,
		preflight:   preflight,
	}
}

// Run executes the selected stages in order and stops at the first failure.
// A failed build never reaches the upload or invalidation stages, and an
// invalid invalidation mode fails before anything runs.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{Stamp: opts.Stamp}
	if report.Stamp == "" {
		report.Stamp = version.Now()
	}

	logger := zerolog.Ctx(ctx).With().Str("stamp", report.Stamp).Logger()
	ctx = logger.WithContext(ctx)

	buildDir := o.settings.BuildPath(o.root)

	mode, explicit := o.invalidationPolicy(opts)
	if !opts.SkipInvalidate {
		if err := utils.ValidateInvalidationMode(mode, explicit); err != nil {
			return report, err
		}
	}

	if opts.Preflight {
		preflight, err := o.preflight.Check(ctx, o.settings)
		if err != nil {
			return report, fmt.Errorf("preflight check failed: %w", err)
		}
		report.Preflight = preflight
	}

	if !opts.SkipBuild {
		if err := o.Build(ctx, opts.SkipVerify); err != nil {
			return report, err
		}
	}

	if !opts.SkipPatch {
		patch, err := o.Patch(ctx, report.Stamp)
		if err != nil {
			return report, err
		}
		report.Patch = patch
	}

	if !opts.SkipUpload {
		logger.Info().
			Str("dir", buildDir).
			Str("bucket", o.settings.Bucket).
			Msg("Uploading build output")

		result, err := o.syncer.Sync(ctx, buildDir)
		if err != nil {
			return report, fmt.Errorf("upload failed: %w", err)
		}
		report.Sync = result
	}

	if opts.SkipInvalidate {
		return report, nil
	}

	paths, err := o.paths(mode, explicit, report.Sync)
	if err != nil {
		return report, err
	}
	report.Paths = paths

	switch {
	case len(paths) == 0:
		logger.Info().Msg("No changed objects, skipping invalidation")
	case opts.DryRun:
		logger.Info().Strs("paths", paths).Msg("(dry run) would invalidate")
	default:
		result, err := o.invalidator.Invalidate(ctx, paths, report.Stamp)
		if err != nil {
			return report, fmt.Errorf("invalidation failed: %w", err)
		}
		report.Invalidation = result
	}

	return report, nil
}

// Build runs the verify steps, unless skipped, followed by the build steps
func (o *Orchestrator) Build(ctx context.Context, skipVerify bool) error {
	var steps []builder.Step
	if !skipVerify {
		steps = append(steps, o.settings.Build.Verify...)
	}
	steps = append(steps, o.settings.Build.Steps...)

	zerolog.Ctx(ctx).Info().
		Str("root", o.root).
		Int("steps", len(steps)).
		Msg("Building site")

	if err := o.runner.Run(ctx, steps...); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return nil
}

// Patch replaces the placeholder token with stamp in the build output
func (o *Orchestrator) Patch(ctx context.Context, stamp string) (*patcher.Report, error) {
	p := &patcher.Patcher{
		Dir:         o.settings.BuildPath(o.root),
		Token:       o.settings.Patch.Token,
		Replacement: stamp,
		Extensions:  o.settings.Patch.Extensions,
		Minify:      o.settings.Patch.Minify,
	}
	report, err := p.Patch(ctx)
	if err != nil {
		return nil, fmt.Errorf("patch failed: %w", err)
	}
	return report, nil
}

// invalidationPolicy applies the run's overrides to the configured mode and
// paths. Paths given without a mode imply explicit mode.
func (o *Orchestrator) invalidationPolicy(opts Options) (string, []string) {
	mode := o.settings.Invalidation.Mode
	if opts.InvalidationMode != "" {
		mode = opts.InvalidationMode
	}
	explicit := o.settings.Invalidation.Paths
	if len(opts.Paths) > 0 {
		explicit = opts.Paths
		if opts.InvalidationMode == "" {
			mode = constants.InvalidationModeExplicit
		}
	}
	return mode, explicit
}

// paths selects the invalidation paths. Changed keys are made relative to the
// bucket prefix, which is expected to be the distribution's origin path.
func (o *Orchestrator) paths(mode string, explicit []string, result *uploader.SyncResult) ([]string, error) {
	listed := result != nil && result.Listed

	prefix := uploader.NormalizePrefix(o.settings.Prefix)
	var changed []string
	for _, key := range result.Changed() {
		changed = append(changed, strings.TrimPrefix(key, prefix))
	}
	return utils.InvalidationPaths(mode, explicit, changed, listed)
}
