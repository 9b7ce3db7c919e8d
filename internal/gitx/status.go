package gitx

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// StatusEntry is one line of a porcelain v1 status listing.
type StatusEntry struct {
	// Code is the two-character XY status code (e.g. " M", "??", "R ")
	Code string

	// Path is the (destination) path relative to the repository root
	Path string

	// OrigPath is the source path of a rename or copy, empty otherwise
	OrigPath string
}

// IsUntracked reports whether the entry is an untracked path.
func (s StatusEntry) IsUntracked() bool {
	return s.Code == "??"
}

// IsIgnored reports whether the entry is an ignored path.
func (s StatusEntry) IsIgnored() bool {
	return s.Code == "!!"
}

// IsRenamed reports whether the entry is a rename or copy.
func (s StatusEntry) IsRenamed() bool {
	return strings.ContainsAny(s.Code, "RC")
}

// IsDeleted reports whether the path was deleted in the index or worktree.
func (s StatusEntry) IsDeleted() bool {
	return strings.ContainsRune(s.Code, 'D')
}

// IsAdded reports whether the path was added to the index (including intent-to-add).
func (s StatusEntry) IsAdded() bool {
	return strings.ContainsRune(s.Code, 'A')
}

// ParseStatus parses `git status --porcelain=v1` output.
//
// Renames ("R  old -> new") resolve to the new path, quoted paths are
// unquoted, a trailing slash on untracked directories is dropped, and
// ignored entries are skipped.
func ParseStatus(out []byte) ([]StatusEntry, error) {
	var entries []StatusEntry

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) < 4 || line[2] != ' ' {
			return nil, fmt.Errorf("malformed status line %q", line)
		}

		entry := StatusEntry{Code: line[:2]}
		if entry.IsIgnored() {
			continue
		}

		rest := line[3:]
		if entry.IsRenamed() {
			orig, dest, ok := splitRename(rest)
			if !ok {
				return nil, fmt.Errorf("malformed rename entry %q", line)
			}
			origPath, err := unquotePath(orig)
			if err != nil {
				return nil, err
			}
			entry.OrigPath = origPath
			rest = dest
		}

		path, err := unquotePath(rest)
		if err != nil {
			return nil, err
		}
		entry.Path = strings.TrimSuffix(path, "/")
		if entry.Path == "" {
			return nil, fmt.Errorf("empty path in status line %q", line)
		}

		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read status output: %w", err)
	}

	return entries, nil
}

// splitRename splits "old -> new", honouring quotes around either side.
func splitRename(s string) (string, string, bool) {
	if strings.HasPrefix(s, `"`) {
		end := closingQuote(s)
		if end < 0 {
			return "", "", false
		}
		orig := s[:end+1]
		rest := s[end+1:]
		if !strings.HasPrefix(rest, " -> ") {
			return "", "", false
		}
		return orig, rest[len(" -> "):], true
	}

	orig, dest, ok := strings.Cut(s, " -> ")
	return orig, dest, ok
}

// closingQuote returns the index of the quote ending a C-quoted string
// that starts at s[0], or -1.
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// unquotePath undoes git's C-style quoting of unusual path names.
func unquotePath(s string) (string, error) {
	if !strings.HasPrefix(s, `"`) {
		return s, nil
	}
	unquoted, err := strconv.Unquote(s)
	if err != nil {
		return "", fmt.Errorf("failed to unquote path %s: %w", s, err)
	}
	return unquoted, nil
}
