// Package safefs resolves untrusted entry names against an output directory
// and creates files without escaping or overwriting.
package safefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathTraversal indicates a name that would resolve outside its base directory.
var ErrPathTraversal = errors.New("path escapes output directory")

const maxUniqueAttempts = 10000

// Join resolves name beneath base. Absolute names, names containing NUL bytes,
// and names whose cleaned form climbs above base are rejected with ErrPathTraversal.
func Join(base, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrPathTraversal)
	}
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q contains NUL", ErrPathTraversal, name)
	}

	normalized := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(normalized, "/") || filepath.IsAbs(name) || hasVolume(normalized) {
		return "", fmt.Errorf("%w: %q is absolute", ErrPathTraversal, name)
	}

	cleaned := filepath.Clean(filepath.FromSlash(normalized))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base %s: %w", base, err)
	}

	joined := filepath.Join(absBase, cleaned)
	if joined != absBase && !strings.HasPrefix(joined, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}

	return joined, nil
}

// SanitizeName reduces an untrusted filename to a single safe path component.
// Separators, reserved characters, and control characters become underscores.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.Trim(b.String(), " .")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}

// CreateUnique exclusively creates a file named name in dir. When the name is
// taken, a counter is inserted before the extension: report.pdf, report_1.pdf, report_2.pdf.
// The caller owns the returned file.
func CreateUnique(dir, name string) (*os.File, error) {
	name = SanitizeName(name)
	ext := extension(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxUniqueAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}

		path, err := Join(dir, candidate)
		if err != nil {
			return nil, err
		}

		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
	}

	return nil, fmt.Errorf("create %s in %s: too many collisions", name, dir)
}

func extension(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		return ""
	}
	return ext
}

func hasVolume(name string) bool {
	return len(name) >= 2 && name[1] == ':' &&
		((name[0] >= 'a' && name[0] <= 'z') || (name[0] >= 'A' && name[0] <= 'Z'))
}
