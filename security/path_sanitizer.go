package security

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrEmptyPath         = errors.New("output path is empty")
	ErrPathTraversal     = errors.New("path traversal detected")
	ErrUnsafeFilename    = errors.New("unsafe filename")
	ErrExtensionRejected = errors.New("file extension not allowed")
)

// maxFilename is the longest file name most filesystems accept.
const maxFilename = 255

// SanitizeFilename strips directories and control characters from a name.
func SanitizeFilename(filename string) string {
	if filename == "" {
		return "file"
	}

	filename = filepath.Base(filename)
	filename = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 || isBidiOverride(r) {
			return -1
		}
		return r
	}, filename)

	if len(filename) > maxFilename {
		filename = filename[:maxFilename]
	}
	if filename == "" || filename == "." || filename == ".." || filename == string(filepath.Separator) {
		filename = "file"
	}
	return filename
}

// bidi overrides can disguise the real extension of a name.
func isBidiOverride(r rune) bool {
	return (r >= 0x202a && r <= 0x202e) || (r >= 0x2066 && r <= 0x2069)
}

// SanitizePath joins userPath onto baseDir and fails if the result escapes it.
func SanitizePath(baseDir, userPath string) (string, error) {
	if baseDir == "" || userPath == "" {
		return "", ErrEmptyPath
	}
	if strings.Contains(userPath, "..\\") || strings.Contains(userPath, "../") || userPath == ".." {
		return "", errors.Wrapf(ErrPathTraversal, "%s", userPath)
	}
	if filepath.IsAbs(userPath) {
		return "", errors.Wrapf(ErrPathTraversal, "absolute path %s", userPath)
	}

	baseDir = filepath.Clean(baseDir)
	cleanPath := filepath.Clean(filepath.Join(baseDir, userPath))
	if cleanPath != baseDir && !strings.HasPrefix(cleanPath, baseDir+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrPathTraversal, "%s", userPath)
	}
	return cleanPath, nil
}

// ValidateExtension reports whether filename ends in one of allowed.
func ValidateExtension(filename string, allowed []string) bool {
	if filename == "" || len(allowed) == 0 {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, a := range allowed {
		if strings.TrimPrefix(strings.ToLower(a), ".") == ext {
			return true
		}
	}
	return false
}

// ResolveOutputPath validates a CLI output path. Relative paths must stay
// inside the working directory; absolute paths are taken as given. The file
// name itself must already be clean and carry an allowed extension.
func ResolveOutputPath(path string, allowed []string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	name := filepath.Base(path)
	if SanitizeFilename(name) != name {
		return "", errors.Wrapf(ErrUnsafeFilename, "%q", name)
	}
	if !ValidateExtension(name, allowed) {
		return "", errors.WithHintf(
			errors.Wrapf(ErrExtensionRejected, "%q", name),
			"use one of %s", strings.Join(allowed, ", "))
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "resolve working directory")
	}
	return SanitizePath(wd, path)
}
