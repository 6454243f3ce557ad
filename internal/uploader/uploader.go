// Package uploader mirrors the local build output to an S3 bucket.
package uploader

import (
	"context"
	"path"
	"strings"
)

// Syncer makes the remote object set match the files under dir
type Syncer interface {
	Sync(ctx context.Context, dir string) (*SyncResult, error)
}

// SyncResult lists the object keys touched by a sync. Keys are only
// populated when Listed is true; a delegated sync cannot report them.
type SyncResult struct {
	Listed    bool
	Uploaded  []string
	Deleted   []string
	Unchanged []string
}

// Changed returns the uploaded and deleted keys
func (r *SyncResult) Changed() []string {
	if r == nil {
		return nil
	}
	changed := make([]string, 0, len(r.Uploaded)+len(r.Deleted))
	changed = append(changed, r.Uploaded...)
	changed = append(changed, r.Deleted...)
	return changed
}

// NormalizePrefix strips leading slashes and guarantees a single trailing
// slash on non-empty prefixes, e.g. "/site" => "site/".
func NormalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return path.Clean(prefix) + "/"
}
