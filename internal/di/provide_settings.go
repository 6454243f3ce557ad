package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"
	"github.com/savaki/site-deployer/internal/services"
)

// ProvideSettingsStore provides a SettingsStore for the configured source.
// An ssm:/path source reads Parameter Store; anything else is a YAML file path.
func ProvideSettingsStore(ctx context.Context, source SettingsSource, ssmClient *ssm.Client) (services.SettingsStore, error) {
	logger := zerolog.Ctx(ctx)

	if path, ok := services.SSMSource(string(source)); ok {
		logger.Debug().Str("path", path).Msg("Using AWS Systems Manager Parameter Store for settings")
		return services.NewSSMSettingsStore(ssmClient, path), nil
	}

	store, err := services.NewFileSettingsStore(string(source))
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", store.Path()).Msg("Using settings file")
	return store, nil
}

// ProvideSettings loads and validates the deployment settings
func ProvideSettings(ctx context.Context, store services.SettingsStore) (*services.Settings, error) {
	logger := zerolog.Ctx(ctx)

	settings, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	logger.Info().
		Str("bucket", settings.Bucket).
		Str("prefix", settings.Prefix).
		Str("distribution_id", settings.DistributionID).
		Str("sync_mode", settings.Sync.Mode).
		Str("invalidation_mode", settings.Invalidation.Mode).
		Msg("Settings loaded successfully")

	return settings, nil
}
