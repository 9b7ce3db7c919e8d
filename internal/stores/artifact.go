package stores

import (
	"fmt"
	"path"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// Kind classifies an artifact.
type Kind int

const (
	// KindTextPatch is a unified diff applied with git apply.
	KindTextPatch Kind = iota

	// KindBinaryOverride is a file written verbatim into the checkout.
	KindBinaryOverride
)

func (k Kind) String() string {
	switch k {
	case KindTextPatch:
		return "patch"
	case KindBinaryOverride:
		return "override"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind rendered by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "patch":
		*k = KindTextPatch
	case "override":
		*k = KindBinaryOverride
	default:
		return fmt.Errorf("unknown artifact kind %q", text)
	}
	return nil
}

// PatchSuffix is appended to a checkout path to name its text artifact.
const PatchSuffix = ".patch"

// patchSuffixes are the artifact suffixes treated as text patches at apply time.
var patchSuffixes = []string{".patch", ".diff"}

// binaryExtensions decide, at regeneration time, which changed files are
// copied verbatim instead of diffed. Matching is by suffix only.
var binaryExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".ico", ".icns", ".svg", ".car",
	".pdf", ".woff", ".woff2", ".ttf", ".eot", ".zip", ".gz", ".tar",
	".xz", ".bz2", ".7z", ".jar", ".so", ".dll", ".exe", ".dylib",
	".node", ".bin", ".dat", ".db", ".sqlite", ".pak", ".crx", ".rdb",
}

// ClassifyArtifact returns the apply-time kind of a store file.
func ClassifyArtifact(relPath string) Kind {
	for _, suffix := range patchSuffixes {
		if strings.HasSuffix(relPath, suffix) {
			return KindTextPatch
		}
	}
	return KindBinaryOverride
}

// IsBinaryPath reports whether a checkout file should be stored verbatim.
// This is a case-insensitive suffix heuristic; contents are never inspected.
func IsBinaryPath(relPath string) bool {
	lower := strings.ToLower(relPath)
	for _, ext := range binaryExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ArtifactPath returns the store-relative artifact path for a changed checkout file.
func ArtifactPath(checkoutRel string, binary bool) string {
	if binary {
		return checkoutRel
	}
	return checkoutRel + PatchSuffix
}

// Artifact is one override read from a store.
type Artifact struct {
	// RelPath is the slash-separated path relative to the store root
	RelPath string `json:"path"`

	// Kind is the apply-time classification
	Kind Kind `json:"kind"`

	// SourcePath is the absolute path of the payload inside the store
	SourcePath string `json:"-"`

	// Targets are the checkout files a text patch touches (empty for
	// overrides or when the diff could not be parsed)
	Targets []string `json:"targets,omitempty"`

	// Added and Deleted are line counts for text patches
	Added   int `json:"added,omitempty"`
	Deleted int `json:"deleted,omitempty"`
}

// TargetPath returns the checkout-relative path the artifact is named after.
func (a Artifact) TargetPath() string {
	if a.Kind != KindTextPatch {
		return a.RelPath
	}
	for _, suffix := range patchSuffixes {
		if strings.HasSuffix(a.RelPath, suffix) {
			return strings.TrimSuffix(a.RelPath, suffix)
		}
	}
	return a.RelPath
}

// describePatch fills Targets and line counts from a parsed diff.
// Unparseable content is left undescribed; git is the authority on whether
// a patch applies.
func (a *Artifact) describePatch(content []byte) error {
	fileDiffs, err := diff.ParseMultiFileDiff(content)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, fd := range fileDiffs {
		name := diffTarget(fd)
		if name != "" && !seen[name] {
			seen[name] = true
			a.Targets = append(a.Targets, name)
		}
		stat := fd.Stat()
		a.Added += int(stat.Added + stat.Changed)
		a.Deleted += int(stat.Deleted + stat.Changed)
	}
	return nil
}

// diffTarget returns the post-image path of a file diff with its
// leading path component stripped, like git apply -p1.
func diffTarget(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	if name == "" || name == "/dev/null" {
		return ""
	}
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return path.Clean(name)
}
