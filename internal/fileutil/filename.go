// Package fileutil contains filename helpers for user-supplied upload names.
package fileutil

import (
	"path"
	"regexp"
	"strings"
)

var (
	// Illegal chars: anything a filesystem or URL would trip over.
	illegalChars = regexp.MustCompile(`[\x00-\x1f/\\:*?"<>|]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// maxNameLen caps sanitized filenames to something reasonable.
const maxNameLen = 100

// SanitizeFilename reduces a client-supplied filename to a safe flat name:
// path components are stripped, illegal characters become underscores, and
// leading dots are removed so the result can never traverse or hide.
// An empty result falls back to "audio".
func SanitizeFilename(name string) string {
	// Normalize Windows separators before taking the base name.
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)

	name = illegalChars.ReplaceAllString(name, "_")
	name = whitespace.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	name = strings.Trim(name, "_")

	if len(name) > maxNameLen {
		ext := path.Ext(name)
		if len(ext) < maxNameLen {
			name = name[:maxNameLen-len(ext)] + ext
		} else {
			name = name[:maxNameLen]
		}
	}

	if name == "" {
		return "audio"
	}
	return name
}

// AllowedExtension reports whether name has one of the allowed extensions,
// matched case-insensitively against its suffix.
func AllowedExtension(name string, allowed []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return true
		}
	}
	return false
}
