package objstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"socialfeed/internal/jsonl"
	"socialfeed/internal/s3uri"
)

const (
	ContentTypeJSON      = "application/json"
	ContentTypeJSONLines = "application/x-ndjson"
)

// ReadJSONLines reads one line-delimited JSON object at uri.
func ReadJSONLines(ctx context.Context, s Store, uri string) ([]json.RawMessage, error) {
	bucket, path, _, err := s3uri.Parse(uri)
	if err != nil {
		return nil, err
	}
	b, err := s.Get(ctx, bucket, s3uri.Key(path))
	if err != nil {
		return nil, err
	}
	rows, err := jsonl.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	return rows, nil
}

// WriteJSONLines writes rows as one line-delimited JSON object at uri.
// Zero rows produce an empty object.
func WriteJSONLines(ctx context.Context, s Store, rows []json.RawMessage, uri string) error {
	bucket, path, _, err := s3uri.Parse(uri)
	if err != nil {
		return err
	}
	b, err := jsonl.Marshal(rows)
	if err != nil {
		return fmt.Errorf("%s: %w", uri, err)
	}
	return s.Put(ctx, bucket, s3uri.Key(path), b, ContentTypeJSONLines)
}

// PutObject stores raw bytes at bucket/key.
func PutObject(ctx context.Context, s Store, bucket, key string, body []byte) error {
	return s.Put(ctx, bucket, strings.TrimPrefix(key, "/"), body, ContentTypeJSON)
}

// GlobJSONLines lists the keys matching <prefixURI>/*.jsonl: direct
// children only, in lexical order.
func GlobJSONLines(ctx context.Context, s Store, prefixURI string) (string, []string, error) {
	bucket, path, _, err := s3uri.Parse(prefixURI)
	if err != nil {
		return "", nil, err
	}
	prefix := s3uri.Key(path)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	keys, err := s.List(ctx, bucket, prefix)
	if err != nil {
		return "", nil, err
	}
	var out []string
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if rest == "" || strings.Contains(rest, "/") || !strings.HasSuffix(rest, ".jsonl") {
			continue
		}
		out = append(out, k)
	}
	return bucket, out, nil
}

// ReadJSONLinesGlob concatenates the rows of every <prefixURI>/*.jsonl
// object. It fails with ErrNoObjects when nothing matches.
func ReadJSONLinesGlob(ctx context.Context, s Store, prefixURI string) ([]json.RawMessage, error) {
	bucket, keys, err := GlobJSONLines(ctx, s, prefixURI)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s/*.jsonl", ErrNoObjects, strings.TrimSuffix(prefixURI, "/"))
	}
	var all []json.RawMessage
	for _, k := range keys {
		b, err := s.Get(ctx, bucket, k)
		if err != nil {
			return nil, err
		}
		rows, err := jsonl.Unmarshal(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s3uri.Join(bucket, k), err)
		}
		all = append(all, rows...)
	}
	return all, nil
}
