// Package pathguard resolves caller-supplied paths against a storage root and
// rejects anything that would escape it. Every bucket and object operation
// goes through Resolve before touching the filesystem.
package pathguard

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

var ErrTraversal = errors.New("pathguard: path escapes storage root")

// CleanRelative normalizes a caller-supplied path into a forward-slash
// relative form: backslashes become slashes, leading slashes are dropped,
// "." segments collapse. It returns ErrTraversal when ".." segments would
// climb above the root, or when the path carries a volume/drive prefix.
func CleanRelative(userPath string) (string, error) {
	p := strings.ReplaceAll(userPath, "\\", "/")
	if strings.Contains(p, ":") {
		// windows volume or scheme prefix, never a valid tenant-relative path
		return "", ErrTraversal
	}
	// Leading slashes are collapsed (treated as root-relative), then the path
	// is cleaned without anchoring so escaping ".." segments remain visible.
	rel := path.Clean(strings.TrimLeft(p, "/"))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", ErrTraversal
	}
	if rel == "." {
		return "", nil
	}
	return rel, nil
}

// Resolve joins userPath to root and guarantees the result stays inside root.
// The prefix check runs post-normalization against root plus a separator so a
// sibling such as "/data/acme-evil" can never satisfy root "/data/acme".
func Resolve(root, userPath string) (string, error) {
	cleanRoot := filepath.Clean(root)
	rel, err := CleanRelative(userPath)
	if err != nil {
		return "", err
	}
	abs := filepath.Clean(filepath.Join(cleanRoot, filepath.FromSlash(rel)))
	if abs != cleanRoot && !strings.HasPrefix(abs, cleanRoot+string(filepath.Separator)) {
		return "", ErrTraversal
	}
	return abs, nil
}
