package ioutils

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// CleanFileName drops every character outside the portable filename set
// (ASCII letters, digits, space and "+-_.()") and trims surrounding spaces.
//
// Example:
//
//	CleanFileName("hw1: final?.c") // Returns "hw1 final.c"
//	CleanFileName("  résumé.pdf ") // Returns "rsum.pdf"
func CleanFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isPortable(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func isPortable(r rune) bool {
	if r > unicode.MaxASCII {
		return false
	}
	switch {
	case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		return true
	}
	return strings.ContainsRune("+-_.() ", r)
}

// CleanPath applies CleanFileName to every slash separated component of a
// remote path. Backslashes are treated as separators too.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		// "." and ".." survive cleaning and are resolved by SecurePath
		if c := CleanFileName(part); c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, "/")
}

// SecurePath resolves "." and ".." in a relative slash path as if it were
// rooted, so the result can never climb above the directory it is joined
// onto. Absolute inputs are made relative.
//
// Example:
//
//	SecurePath("../../etc/passwd") // Returns "etc/passwd"
//	SecurePath("/src/./main.c")    // Returns "src/main.c"
func SecurePath(p string) string {
	rooted := path.Clean("/" + strings.ReplaceAll(p, `\`, "/"))
	return strings.TrimPrefix(rooted, "/")
}

// SanitizeRelative cleans and secures a remote supplied relative name and
// converts it to the host separator. It is idempotent. An input with nothing
// usable left yields "".
func SanitizeRelative(name string) string {
	return filepath.FromSlash(SecurePath(CleanPath(filepath.ToSlash(name))))
}

// StripSpace removes all whitespace, used for display name path segments.
func StripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Within reports whether target is root itself or lies beneath it.
func Within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
