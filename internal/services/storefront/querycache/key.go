package querycache

import (
	"net/url"
	"strings"
)

// Key identifies a cached resource as a path of segments, most general first,
// e.g. products/list/<filter>. Segments are escaped so they never contain the
// separator.
type Key string

const keySeparator = "/"

// NewKey builds a key from segments.
func NewKey(segments ...string) Key {
	escaped := make([]string, 0, len(segments))
	for _, segment := range segments {
		escaped = append(escaped, url.PathEscape(segment))
	}
	return Key(strings.Join(escaped, keySeparator))
}

// Child returns k extended with more segments.
func (k Key) Child(segments ...string) Key {
	child := NewKey(segments...)
	if k == "" {
		return child
	}
	if child == "" {
		return k
	}
	return k + keySeparator + child
}

// Segments returns the unescaped segments of k.
func (k Key) Segments() []string {
	if k == "" {
		return nil
	}
	parts := strings.Split(string(k), keySeparator)
	for i, part := range parts {
		if unescaped, err := url.PathUnescape(part); err == nil {
			parts[i] = unescaped
		}
	}
	return parts
}

// HasPrefix reports whether prefix names k or one of its ancestors. Matching
// is by whole segment, so products/li does not match products/list/x. The
// empty key is an ancestor of every key.
func (k Key) HasPrefix(prefix Key) bool {
	if prefix == "" || k == prefix {
		return true
	}
	return strings.HasPrefix(string(k), string(prefix)+keySeparator)
}

// String returns the encoded key.
func (k Key) String() string {
	return string(k)
}
