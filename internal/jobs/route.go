package jobs

import "strings"

// ParseRoute extracts the run ID from a path like /api/transcriptions/{id}.
// A bare ID without RunPrefix is accepted and normalized.
func ParseRoute(path, apiPrefix string) (id string, ok bool) {
	rest, found := strings.CutPrefix(path, apiPrefix)
	if !found {
		return "", false
	}
	rest = strings.Trim(rest, "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	if !strings.HasPrefix(rest, RunPrefix) {
		rest = RunPrefix + rest
	}
	if !ValidID(rest) {
		return "", false
	}
	return rest, true
}
