package knowledge

import (
	"strconv"
	"strings"
	"time"
)

// CompareModified orders two remote modification stamps.
// RFC3339 values compare as instants, integer values numerically,
// anything else lexically. Returns -1, 0 or 1.
func CompareModified(a, b string) int {
	if ta, errA := time.Parse(time.RFC3339Nano, a); errA == nil {
		if tb, errB := time.Parse(time.RFC3339Nano, b); errB == nil {
			return ta.Compare(tb)
		}
	}
	if na, errA := strconv.ParseInt(a, 10, 64); errA == nil {
		if nb, errB := strconv.ParseInt(b, 10, 64); errB == nil {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(a, b)
}

// MaxModified returns the newest non-empty stamp, or "" when there is none
func MaxModified(stamps []string) string {
	latest := ""
	for _, s := range stamps {
		if s == "" {
			continue
		}
		if latest == "" || CompareModified(s, latest) > 0 {
			latest = s
		}
	}
	return latest
}
