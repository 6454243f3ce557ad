// Package di provides a lightweight wrapper around uber's dig dependency injection framework.
// It simplifies container setup and provides type-safe dependency retrieval with generics.
package di

import (
	"context"

	"github.com/savaki/site-deployer/internal/services"
	"go.uber.org/dig"
)

// Container defines a dependency injection container based on uber's dig.
// This interface allows for easy testing and mocking of the DI container.
type Container interface {
	// Invoke executes a function, injecting its dependencies from the container.
	Invoke(function any, opts ...dig.InvokeOption) error

	// Provide registers a constructor function in the container.
	Provide(constructor any, opts ...dig.ProvideOption) error

	// Scope creates a scoped sub-container with its own set of values.
	Scope(name string, opts ...dig.ScopeOption) *dig.Scope
}

// Get returns an instance constructed via dependency injection, or the error
// from the first constructor in its dependency graph that failed.
func Get[T any](container Container) (want T, err error) {
	callback := func(got T) {
		want = got
	}
	if err := container.Invoke(callback); err != nil {
		return want, dig.RootCause(err)
	}
	return want, nil
}

// MustGet returns an instance constructed via dependency injection or panics.
// This is a convenience function for retrieving a dependency from the container
// when you're certain it exists. If the dependency cannot be resolved, it will panic.
//
// Example:
//
//	settings := MustGet[*services.Settings](container)
func MustGet[T any](container Container) (want T) {
	want, err := Get[T](container)
	if err != nil {
		panic(err)
	}
	return want
}

// New creates a new dependency injection container for a single run.
// The context is registered as a dependency so constructors can reach the
// logger it carries.
//
// Example:
//
//	container, err := New(ctx,
//	    WithSettingsSource("~/.site-deployer.yaml"),
//	    WithRoot("."),
//	)
func New(ctx context.Context, opts ...Option) (Container, error) {
	// Build options
	o := options{
		settingsSource: SettingsSource(services.DefaultSettingsPath()),
		root:           ".",
	}
	for _, opt := range opts {
		opt(&o)
	}

	// Create dig container
	container := dig.New()
	values := []any{
		func() context.Context { return ctx },
		func() SettingsSource { return o.settingsSource },
		func() Region { return o.region },
		func() Profile { return o.profile },
		func() Root { return o.root },
		func() DryRun { return o.dryRun },
	}
	for _, value := range values {
		if err := container.Provide(value); err != nil {
			return nil, err
		}
	}

	// Register all provided constructors
	for _, provider := range core {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	// Register all provided constructors
	for _, provider := range o.providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	// Decorators replace values produced by the constructors above
	for _, decorator := range o.decorators {
		if err := container.Decorate(decorator); err != nil {
			return nil, err
		}
	}

	return container, nil
}

var core = []any{
	ProvideAWSConfig,
	ProvideS3Client,
	ProvideCloudFrontClient,
	ProvideSTSClient,
	ProvideSSMClient,
	ProvideSettingsStore,
	ProvideSettings,
	ProvideRunner,
	ProvideSyncer,
	ProvideInvalidator,
	ProvidePreflight,
	ProvideOrchestrator,
}
