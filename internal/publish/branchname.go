package publish

import (
	"fmt"
	"strings"
)

const branchNamePrefix = "update-docs"

// branchName derives the name of the publish branch from the display name
// and the run's unix timestamp.
// The timestamp suffix is the sole uniqueness guarantee: two runs for the
// same version started within the same second collide. Given the pipeline's
// invocation frequency, manual or once per release, this is an accepted
// bounded-probability race and deliberately not guarded against with
// finer-grained entropy.
func branchName(displayName string, unixTimestamp int64) string {
	return fmt.Sprintf("%s-%s-%d", branchNamePrefix, sanitizeBranchComponent(displayName), unixTimestamp)
}

// sanitizeBranchComponent replaces every non-alphanumeric character with '-'
// and collapses consecutive '-' runs into one.
func sanitizeBranchComponent(displayName string) string {
	var result strings.Builder
	result.Grow(len(displayName))

	lastWasDash := false

	for _, r := range displayName {
		if isAlphanumeric(r) {
			result.WriteRune(r)
			lastWasDash = false
			continue
		}

		if lastWasDash {
			continue
		}

		result.WriteByte('-')
		lastWasDash = true
	}

	return result.String()
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
