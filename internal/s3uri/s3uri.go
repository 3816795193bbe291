// Package s3uri splits s3:// object locations into bucket and key paths.
package s3uri

import (
	"errors"
	"fmt"
	"strings"
)

const Scheme = "s3://"

// ErrInvalidURI is returned for strings that are not s3:// URIs.
var ErrInvalidURI = errors.New("invalid S3 URI")

// Parse returns the bucket, the path within the bucket (leading "/"), and
// the path without its last segment when that segment looks like a file
// name (contains a "."). Repeated or trailing separators are kept as given.
func Parse(uri string) (bucket, path, dir string, err error) {
	if !strings.HasPrefix(uri, Scheme) {
		return "", "", "", fmt.Errorf("%w: must start with %q: %q", ErrInvalidURI, Scheme, uri)
	}
	parts := strings.Split(uri[len(Scheme):], "/")
	bucket = parts[0]
	if bucket == "" {
		return "", "", "", fmt.Errorf("%w: missing bucket name: %q", ErrInvalidURI, uri)
	}
	path = "/" + strings.Join(parts[1:], "/")
	dir = path
	if strings.Contains(path, ".") {
		dir = path[:strings.LastIndex(path, "/")]
	}
	return bucket, path, dir, nil
}

// Key returns the object key for a parsed path (no leading "/").
func Key(path string) string { return strings.TrimPrefix(path, "/") }

// Join builds s3://bucket/key.
func Join(bucket, key string) string {
	return Scheme + bucket + "/" + strings.TrimPrefix(key, "/")
}
