package services

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"
)

// Parameter names read below the store's path
const (
	paramBucket         = "bucket"
	paramDistributionID = "cloudfront-distribution-id"
	paramPrefix         = "prefix"
	paramBuildDir       = "build-dir"
)

// SSMAPI abstracts the Parameter Store operations for testing
type SSMAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// SSMSettingsStore implements SettingsStore using AWS Systems Manager Parameter Store.
// Only the site location is read from SSM; everything else keeps its defaults.
type SSMSettingsStore struct {
	client SSMAPI
	path   string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMSettingsStore creates a new SSM-backed settings store rooted at path
func NewSSMSettingsStore(client SSMAPI, path string) *SSMSettingsStore {
	return &SSMSettingsStore{
		client: client,
		path:   "/" + strings.Trim(path, "/"),
		cache:  make(map[string]string),
	}
}

// Load reads the parameters under the store's path and builds Settings from them
func (s *SSMSettingsStore) Load(ctx context.Context) (*Settings, error) {
	params, err := s.parameters(ctx)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("path", s.path).
		Int("parameters", len(params)).
		Msg("Loaded settings from Parameter Store")

	settings := &Settings{
		Bucket:         params[s.name(paramBucket)],
		DistributionID: params[s.name(paramDistributionID)],
		Prefix:         params[s.name(paramPrefix)],
		BuildDir:       params[s.name(paramBuildDir)],
	}
	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("ssm:%s: %w", s.path, err)
	}
	return settings, nil
}

func (s *SSMSettingsStore) parameters(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	if len(s.cache) > 0 {
		params := maps.Clone(s.cache)
		s.mu.RUnlock()
		return params, nil
	}
	s.mu.RUnlock()

	params := make(map[string]string)
	paginator := ssm.NewGetParametersByPathPaginator(s.client, &ssm.GetParametersByPathInput{
		Path:           aws.String(s.path),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", s.path, err)
		}
		for _, param := range page.Parameters {
			if param.Name != nil && param.Value != nil {
				params[*param.Name] = *param.Value
			}
		}
	}

	s.mu.Lock()
	maps.Copy(s.cache, params)
	s.mu.Unlock()

	return params, nil
}

func (s *SSMSettingsStore) name(param string) string {
	return strings.TrimSuffix(s.path, "/") + "/" + param
}
