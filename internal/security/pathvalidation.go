// Package security guards the output paths npcloud writes to.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory checks that filePath resolves inside safeDir,
// following symlinks on both the path and its nearest existing parent.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	canonicalPath, err := canonical(filePath)
	if err != nil {
		return err
	}

	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory symlinks: %w", err)
	}

	return checkRel(canonicalSafeDir, canonicalPath, filePath, safeDir)
}

// canonical resolves symlinks in p. When p does not exist yet the nearest
// existing parent is resolved and the remaining components appended, so a
// symlinked parent cannot redirect a new file.
func canonical(p string) (string, error) {
	absPath, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(absPath); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, absPath)
			return filepath.Join(resolved, rest), nil
		}
		if dir == filepath.Dir(dir) {
			return absPath, nil
		}
	}
}

func checkRel(base, target, origPath, origDir string) error {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return fmt.Errorf("path is outside output directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", origPath, origDir)
	}
	return nil
}

// JoinWithin joins name onto dir and rejects results that leave dir
// lexically. It does not touch the filesystem.
func JoinWithin(dir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}
	joined := filepath.Join(dir, name)
	if err := checkRel(filepath.Clean(dir), joined, name, dir); err != nil {
		return "", err
	}
	if joined == filepath.Clean(dir) {
		return "", fmt.Errorf("file name %q names the directory itself", name)
	}
	return joined, nil
}

// SanitizeFilename makes a safe file name stem from an arbitrary string,
// such as an input file name or an archive member key. Runs of characters
// other than ASCII letters, digits, dot, underscore and dash collapse to a
// single underscore; the result is trimmed and capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128

	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
