package constants

import "time"

// Settings defaults applied when the settings file leaves a value empty
const (
	// SettingsFileName is the settings file looked up in the user's home directory
	SettingsFileName = ".site-deployer.yaml"

	// BuildDir is the build output directory, relative to the project root
	BuildDir = "build"

	// BuildStepName and BuildCommand define the build step used when none are configured
	BuildStepName = "build"
	BuildCommand  = "npm run build"

	// PlaceholderToken is replaced by the run timestamp in patched files
	PlaceholderToken = "VERSION_STRING"
)

// PatchExtensions lists the file extensions patched when none are configured
var PatchExtensions = []string{".html"}

// Sync modes
const (
	SyncModeSDK = "sdk"
	SyncModeCLI = "cli"

	SyncConcurrency = 4
)

// Invalidation modes and polling defaults
const (
	InvalidationModeWildcard = "wildcard"
	InvalidationModeExplicit = "explicit"
	InvalidationModeChanged  = "changed"

	// WildcardPath invalidates every object in the distribution
	WildcardPath = "/*"

	// MaxInvalidationPaths bounds the paths sent in "changed" mode before
	// falling back to the wildcard
	MaxInvalidationPaths = 1000

	PollInterval    = 20 * time.Second
	PollMaxAttempts = 30

	// InvalidationCompleted is the terminal CloudFront invalidation status
	InvalidationCompleted = "Completed"
)
