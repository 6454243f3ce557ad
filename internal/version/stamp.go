// Package version generates the per-run timestamp used for cache busting
// and as the CloudFront caller reference.
package version

import (
	"fmt"
	"time"
)

// Stamp formats t in UTC as a compact ISO-8601 basic timestamp, e.g.
// 20240101T000000. Microseconds are appended as .ffffff only when non-zero.
func Stamp(t time.Time) string {
	t = t.UTC()
	s := t.Format("20060102T150405")
	if us := t.Nanosecond() / int(time.Microsecond); us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}

// Now returns the Stamp for the current time.
func Now() string {
	return Stamp(time.Now())
}
