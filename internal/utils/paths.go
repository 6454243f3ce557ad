package utils

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/savaki/site-deployer/internal/constants"
	errs "github.com/savaki/site-deployer/internal/errors"
)

// ValidateInvalidationMode checks mode, and for explicit mode that at least one
// path is given, without resolving anything.
func ValidateInvalidationMode(mode string, explicit []string) error {
	switch mode {
	case "", constants.InvalidationModeWildcard, constants.InvalidationModeChanged:
		return nil
	case constants.InvalidationModeExplicit:
		if !slices.ContainsFunc(explicit, func(p string) bool { return strings.TrimSpace(p) != "" }) {
			return fmt.Errorf("%w: invalidation.paths is empty for explicit mode", errs.ErrInvalidSetting)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown invalidation mode %q", errs.ErrInvalidSetting, mode)
	}
}

// InvalidationPaths resolves the CloudFront paths to invalidate for mode.
//
//   - wildcard: always "/*"
//   - explicit: the configured paths, each forced to start with "/"
//   - changed: one path per changed key; falls back to "/*" when the change
//     set is unknown (listed == false) or exceeds the per-batch limit
//
// An empty result means there is nothing to invalidate.
func InvalidationPaths(mode string, explicit []string, changed []string, listed bool) ([]string, error) {
	switch mode {
	case "", constants.InvalidationModeWildcard:
		return []string{constants.WildcardPath}, nil

	case constants.InvalidationModeExplicit:
		if err := ValidateInvalidationMode(mode, explicit); err != nil {
			return nil, err
		}
		var paths []string
		for _, p := range explicit {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !strings.HasPrefix(p, "/") {
				p = "/" + p
			}
			paths = append(paths, p)
		}
		slices.Sort(paths)
		return slices.Compact(paths), nil

	case constants.InvalidationModeChanged:
		if !listed {
			return []string{constants.WildcardPath}, nil
		}
		seen := map[string]struct{}{}
		for _, key := range changed {
			p := "/" + escapePath(key)
			seen[p] = struct{}{}
			// CloudFront caches "/docs/" separately from "/docs/index.html"
			if dir, ok := strings.CutSuffix(p, "/index.html"); ok {
				seen[dir+"/"] = struct{}{}
			}
		}
		if len(seen) > constants.MaxInvalidationPaths {
			return []string{constants.WildcardPath}, nil
		}
		paths := make([]string, 0, len(seen))
		for p := range seen {
			paths = append(paths, p)
		}
		slices.Sort(paths)
		return paths, nil

	default:
		return nil, ValidateInvalidationMode(mode, explicit)
	}
}

func escapePath(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
