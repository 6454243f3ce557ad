package errors

import "errors"

var (
	ErrSettingsNotFound     = errors.New("settings file not found")
	ErrMissingSetting       = errors.New("required setting is missing")
	ErrInvalidSetting       = errors.New("invalid setting")
	ErrBuildDirNotFound     = errors.New("build directory not found")
	ErrInvalidationTimeout  = errors.New("timed out waiting for CloudFront invalidation")
	ErrInvalidationNotFound = errors.New("CloudFront invalidation not found")
)
