// Package jobs names transcription runs and parses the routes that look
// them up.
package jobs

import (
	"strings"

	"github.com/google/uuid"
)

// RunPrefix starts every run ID.
const RunPrefix = "tr-"

// GenerateID returns a new random run ID such as "tr-9f1c...".
func GenerateID() string {
	return RunPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidID reports whether id has the shape GenerateID produces.
func ValidID(id string) bool {
	hex, ok := strings.CutPrefix(id, RunPrefix)
	if !ok || len(hex) != 32 {
		return false
	}
	_, err := uuid.Parse(hex)
	return err == nil
}
