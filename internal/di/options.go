package di

// SettingsSource is a settings file path or an ssm:/path Parameter Store location
type SettingsSource string

// Region and Profile override the AWS SDK defaults when set
type Region string
type Profile string

// Root is the project root the build runs in
type Root string

// DryRun plans remote changes without making them
type DryRun bool

// Option is a function that configures the dependency injection container.
type Option func(*options)

func WithSettingsSource(source string) Option {
	return func(opts *options) {
		if source != "" {
			opts.settingsSource = SettingsSource(source)
		}
	}
}

func WithRegion(region string) Option {
	return func(opts *options) {
		opts.region = Region(region)
	}
}

func WithProfile(profile string) Option {
	return func(opts *options) {
		opts.profile = Profile(profile)
	}
}

func WithRoot(root string) Option {
	return func(opts *options) {
		if root != "" {
			opts.root = Root(root)
		}
	}
}

func WithDryRun(dryRun bool) Option {
	return func(opts *options) {
		opts.dryRun = DryRun(dryRun)
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    func(settings *services.Settings, root Root) *patcher.Patcher {
//	        return &patcher.Patcher{Dir: settings.BuildPath(string(root))}
//	    },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

// WithDecorators replaces values built by the container, e.g. swapping the
// loaded settings or AWS config in tests.
//
// Example:
//
//	WithDecorators(func(aws.Config) aws.Config { return testConfig })
func WithDecorators(decorators ...any) Option {
	return func(opts *options) {
		opts.decorators = append(opts.decorators, decorators...)
	}
}

type options struct {
	settingsSource SettingsSource
	region         Region
	profile        Profile
	root           Root
	dryRun         DryRun
	providers      []any
	decorators     []any
}
