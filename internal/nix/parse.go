package nix

import (
	"encoding/json"
	"sort"
	"strings"
)

// parseJSONStorePaths extracts output store paths from `nix build
// --json` output: an array of build records whose "outputs" map names
// to store paths.
func parseJSONStorePaths(stdout string) []string {
	var records []struct {
		Outputs map[string]string `json:"outputs"`
	}
	if err := json.Unmarshal([]byte(stdout), &records); err != nil {
		return nil
	}
	var paths []string
	for _, rec := range records {
		keys := make([]string, 0, len(rec.Outputs))
		for k := range rec.Outputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if p := rec.Outputs[k]; strings.HasPrefix(p, "/nix/store/") {
				paths = append(paths, p)
			}
		}
	}
	return paths
}

// parseStorePaths extracts store paths from plain-text output, one per
// line. Used as a fallback when JSON output is unavailable.
func parseStorePaths(stdout string) []string {
	var paths []string
	for line := range strings.Lines(stdout) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "/nix/store/") {
			paths = append(paths, line)
		}
	}
	return paths
}
