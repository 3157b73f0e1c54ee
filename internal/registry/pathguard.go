package registry

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// slugPattern is the allowed shape for vault ids and note-type/filename
// slugs: [A-Za-z0-9_-]+.
var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateSlug reports whether s is a valid vault id / note-type name.
func ValidateSlug(s string) error {
	if s == "" || !slugPattern.MatchString(s) {
		return vaulterr.ValidationFailed("must match [A-Za-z0-9_-]+")
	}

	return nil
}

// ExpandPath expands a leading "~" to the user's home directory and
// returns a cleaned absolute path. It never touches the filesystem.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", vaulterr.PathUnsafe(path)
	}

	expanded := path

	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", vaulterr.IoError("expand_path", path, err)
		}

		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", vaulterr.IoError("expand_path", path, err)
	}

	return filepath.Clean(abs), nil
}

// SafeJoin joins root and rel, rejecting any rel that would escape root
// via "..", an absolute path, or a symlink-free traversal check on the
// resulting clean path. Every file operation in vaultdb that takes a
// caller-influenced relative path (note filenames, note-type names)
// goes through SafeJoin.
func SafeJoin(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", vaulterr.PathUnsafe(rel)
	}

	joined := filepath.Join(root, rel)

	relBack, err := filepath.Rel(root, joined)
	if err != nil {
		return "", vaulterr.PathUnsafe(rel)
	}

	if relBack == ".." || strings.HasPrefix(relBack, ".."+string(filepath.Separator)) {
		return "", vaulterr.PathUnsafe(rel)
	}

	return joined, nil
}
