package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// siteTable is the top-level key holding the [site.<name>] sections.
const siteTable = "site"

// knownGlobalKeys are the valid flat top-level keys in the config file.
var knownGlobalKeys = map[string]bool{
	"log_level": true, "log_format": true, "connect_timeout": true, "token_store": true,
	siteTable: true,
}

// knownSiteKeys are the valid keys inside a site section.
var knownSiteKeys = map[string]bool{
	"url": true, "secret": true, "client_id": true, "resource": true, "acs": true,
}

// Sorted for deterministic suggestions when two candidates have the same
// edit distance.
var (
	knownGlobalKeysList = sortedKeys(knownGlobalKeys)
	knownSiteKeysList   = sortedKeys(knownSiteKeys)
)

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		if len(key) >= 3 && key[0] == siteTable {
			errs = append(errs, buildSiteKeyError(key[1], key[2]))
			continue
		}

		errs = append(errs, buildGlobalKeyError(key[0]))
	}

	return errors.Join(errs...)
}

// buildGlobalKeyError creates a descriptive error for an unknown top-level
// key, suggesting the closest known key when one is near.
func buildGlobalKeyError(fieldName string) error {
	if suggestion := closestMatch(fieldName, knownGlobalKeysList); suggestion != "" {
		return fmt.Errorf("unknown config key %q, did you mean %q?", fieldName, suggestion)
	}

	return fmt.Errorf("unknown config key %q", fieldName)
}

func buildSiteKeyError(site, key string) error {
	if suggestion := closestMatch(key, knownSiteKeysList); suggestion != "" {
		return fmt.Errorf("unknown key %q in [site.%s], did you mean %q?", key, site, suggestion)
	}

	return fmt.Errorf("unknown key %q in [site.%s]", key, site)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(strings.ToLower(unknown), k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization: two rows instead of a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
