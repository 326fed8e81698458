// Package pathguard implements the base-directory containment contract
// required of any module that parses local files under an allowed base
// directory.
package pathguard

import (
	"fmt"
	"path/filepath"
	"strings"

	"modkit/internal/apperror"
)

// Guard enforces that every path it resolves stays within a single
// canonicalized base directory.
type Guard struct {
	base string
}

// New canonicalizes baseDir and returns a Guard rooted at it. baseDir
// must already exist; New does not create it.
func New(baseDir string) (*Guard, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "canonicalizing base dir", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "resolving base dir symlinks", err)
	}
	return &Guard{base: resolved}, nil
}

// Resolve joins candidate onto the guard's base directory and rejects it
// if the result would escape the base:
//   - any path containing ".." is rejected, the error mentions "..";
//   - any absolute path outside the canonicalized base is rejected;
//   - any symlink whose target lies outside the base is rejected.
//
// Escape-case error messages deliberately omit the canonicalized base
// directory so a malicious-path error response cannot be used to probe
// the host's filesystem layout.
func (g *Guard) Resolve(candidate string) (string, error) {
	if strings.Contains(candidate, "..") {
		return "", apperror.New(apperror.KindPathTraversal, fmt.Sprintf("path %q contains \"..\"", candidate))
	}

	var joined string
	if filepath.IsAbs(candidate) {
		joined = filepath.Clean(candidate)
	} else {
		joined = filepath.Join(g.base, candidate)
	}

	if !g.withinBase(joined) {
		return "", apperror.New(apperror.KindPathTraversal, "resolved path escapes the allowed base directory")
	}

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		// A path that does not exist yet (about to be created) cannot be
		// symlink-checked; fall back to the cleaned, non-symlink-resolved
		// path, which has already passed the base-containment check above.
		return joined, nil
	}

	if !g.withinBase(resolved) {
		return "", apperror.New(apperror.KindPathTraversal, "resolved symlink target escapes the allowed base directory")
	}

	return resolved, nil
}

// withinBase reports whether p is equal to or nested under g.base.
func (g *Guard) withinBase(p string) bool {
	rel, err := filepath.Rel(g.base, p)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// Base returns the canonicalized base directory.
func (g *Guard) Base() string {
	return g.base
}
