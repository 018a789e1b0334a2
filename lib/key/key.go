package key

import (
	"strconv"
	"strings"
)

// Delimiter separates the segments of a key
const Delimiter = ":"

// Extract splits key into its path and array index.
//
// Surrounding whitespace is ignored. A key without a closing bracket is a
// plain path addressing index 0, even if it contains '['. The returned
// isArray flag reports whether an explicit index was given. ok is false if
// the bracket suffix is malformed; path and index are zero in that case.
func Extract(key string) (path string, index int, isArray bool, ok bool) {
	key = strings.TrimSpace(key)

	closing := strings.IndexByte(key, ']')
	if closing < 0 {
		// an opening bracket alone is part of the path
		return key, 0, false, true
	}
	if closing != len(key)-1 {
		return "", 0, false, false
	}

	opening := strings.IndexByte(key, '[')
	if opening < 0 || opening != strings.LastIndexByte(key, '[') {
		return "", 0, false, false
	}
	// empty brackets and an empty segment before the suffix ("a:[0]")
	if opening+1 == closing || opening == 0 || key[opening-1] == ':' {
		return "", 0, false, false
	}

	digits := key[opening+1 : closing]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return "", 0, false, false
		}
	}
	idx, err := strconv.Atoi(digits)
	if err != nil {
		return "", 0, false, false
	}

	return key[:opening], idx, true, true
}

// Check validates a key for writing and returns its path and index.
// Besides the rules of Extract it rejects empty keys, leading, trailing and
// doubled delimiters and array indices directly on the component level.
func Check(key string) (path string, index int, ok bool) {
	key = strings.TrimSpace(key)

	if key == "" ||
		strings.HasPrefix(key, Delimiter) ||
		strings.HasSuffix(key, Delimiter) || // empty last node, like "::"
		strings.Contains(key, Delimiter+Delimiter) {
		return "", 0, false
	}

	path, index, isArray, ok := Extract(key)
	if !ok {
		return "", 0, false
	}
	if isArray && !strings.Contains(path, Delimiter) {
		return "", 0, false
	}
	return path, index, true
}

// ComponentName returns the first segment of key. For a key without
// delimiter the whole (trimmed) key is the component.
func ComponentName(key string) string {
	key = strings.TrimSpace(key)
	if i := strings.Index(key, Delimiter); i >= 0 {
		return key[:i]
	}
	return key
}

// ValidComponentName reports whether name can be used as a component:
// it must be non-empty and must not contain the delimiter or brackets.
func ValidComponentName(name string) bool {
	return name != "" && !strings.ContainsAny(name, ":[]")
}

// Segments splits a path at the delimiter
func Segments(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Delimiter)
}

// Join concatenates the given segments with the delimiter
func Join(segments ...string) string {
	return strings.Join(segments, Delimiter)
}

// WithIndex appends an array suffix to path
func WithIndex(path string, index int) string {
	return path + "[" + strconv.Itoa(index) + "]"
}

// Parent returns the path without its last segment and whether one existed
func Parent(path string) (string, bool) {
	i := strings.LastIndex(path, Delimiter)
	if i < 0 {
		return "", false
	}
	return path[:i], true
}
