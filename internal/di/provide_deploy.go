package di

import (
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/savaki/site-deployer/internal/builder"
	"github.com/savaki/site-deployer/internal/constants"
	"github.com/savaki/site-deployer/internal/invalidator"
	"github.com/savaki/site-deployer/internal/orchestrator"
	"github.com/savaki/site-deployer/internal/services"
	"github.com/savaki/site-deployer/internal/uploader"
	"github.com/savaki/site-deployer/internal/utils"
)

// ProvideRunner provides the build step runner for the project root
func ProvideRunner(settings *services.Settings, root Root) *builder.Runner {
	return &builder.Runner{
		Dir: string(root),
		Env: utils.MergeEnv(settings.Build.Env),
	}
}

// ProvideSyncer provides the uploader selected by sync.mode
func ProvideSyncer(settings *services.Settings, s3Client *s3.Client, dryRun DryRun) uploader.Syncer {
	if settings.Sync.Mode == constants.SyncModeCLI {
		return &uploader.CLISyncer{
			Bucket: settings.Bucket,
			Prefix: settings.Prefix,
			Delete: settings.Sync.DeleteEnabled(),
			DryRun: bool(dryRun),
		}
	}

	return uploader.NewBucketSyncer(s3Client, uploader.BucketSyncerInput{
		Bucket:       settings.Bucket,
		Prefix:       settings.Prefix,
		CacheControl: settings.Sync.CacheControl,
		Delete:       settings.Sync.DeleteEnabled(),
		DryRun:       bool(dryRun),
		Concurrency:  settings.Sync.Concurrency,
	})
}

// ProvideInvalidator provides a CloudFront invalidator for the configured distribution
func ProvideInvalidator(settings *services.Settings, cfClient *cloudfront.Client) *invalidator.Invalidator {
	policy := invalidator.NewPolicy(settings.Invalidation.PollInterval, settings.Invalidation.MaxAttempts)
	return invalidator.New(cfClient, settings.DistributionID, policy)
}

func ProvidePreflight(stsClient *sts.Client, s3Client *s3.Client, cfClient *cloudfront.Client) *services.Preflight {
	return services.NewPreflight(stsClient, s3Client, cfClient)
}

// ProvideOrchestrator wires the deploy pipeline for the project root
func ProvideOrchestrator(
	settings *services.Settings,
	root Root,
	runner *builder.Runner,
	syncer uploader.Syncer,
	inv *invalidator.Invalidator,
	preflight *services.Preflight,
) *orchestrator.Orchestrator {
	return orchestrator.New(settings, string(root), runner, syncer, inv, preflight)
}
