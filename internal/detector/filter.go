package detector

import "strings"

// isAlwaysExcluded returns true for paths that must never be synced: the
// metadata directory itself, and the editor/transfer temp-file patterns
// carried over from the teacher's isAlwaysExcluded
// (internal/sync/observer_local.go) — the subset of that list that still
// applies to a generic sync root rather than OneDrive-specific validation.
func isAlwaysExcluded(name, metadataDirName string) bool {
	if name == metadataDirName {
		return true
	}

	lower := strings.ToLower(name)

	for _, suffix := range alwaysExcludedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}

	if strings.HasPrefix(name, "~") || strings.HasPrefix(name, ".~") {
		return true
	}

	return false
}

// alwaysExcludedSuffixes lists extensions that are unsafe or meaningless to
// version: partial downloads and editor temporaries.
var alwaysExcludedSuffixes = []string{
	".partial", ".tmp", ".swp", ".crdownload",
}
