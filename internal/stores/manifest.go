package stores

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// ManifestPolicy decides what regeneration does with an existing manifest.
type ManifestPolicy string

const (
	// ManifestRewrite keeps surviving entries in order and appends new ones.
	ManifestRewrite ManifestPolicy = "rewrite"

	// ManifestPreserve copies the old manifest verbatim.
	ManifestPreserve ManifestPolicy = "preserve"

	// ManifestDrop removes the manifest, switching the store to implicit ordering.
	ManifestDrop ManifestPolicy = "drop"
)

// ParseManifest returns the artifact paths listed in a manifest, in order.
// Blank lines and lines starting with '#' are ignored; duplicates keep
// their first position.
func ParseManifest(data []byte) ([]string, error) {
	var entries []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rel, err := normalizeEntry(line)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", lineNo, err)
		}
		if seen[rel] {
			continue
		}
		seen[rel] = true
		entries = append(entries, rel)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return entries, nil
}

// ManifestHeader returns the comment block at the top of a manifest.
func ManifestHeader(data []byte) []string {
	var header []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(strings.TrimSpace(line), "#") {
			break
		}
		header = append(header, line)
	}
	return header
}

// MergeManifest orders current artifact paths after a previous manifest:
// entries that survive keep their previous relative order, vanished ones
// are dropped, and new ones are appended in lexical order.
func MergeManifest(previous, current []string) []string {
	present := make(map[string]bool, len(current))
	for _, rel := range current {
		present[rel] = true
	}

	merged := make([]string, 0, len(current))
	placed := make(map[string]bool, len(current))
	for _, rel := range previous {
		if present[rel] && !placed[rel] {
			merged = append(merged, rel)
			placed[rel] = true
		}
	}

	var added []string
	for _, rel := range current {
		if !placed[rel] {
			added = append(added, rel)
			placed[rel] = true
		}
	}
	sort.Strings(added)

	return append(merged, added...)
}

// FormatManifest renders a manifest with an optional comment header.
func FormatManifest(header, entries []string) []byte {
	var buf bytes.Buffer
	for _, line := range header {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	for _, rel := range entries {
		buf.WriteString(rel)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
