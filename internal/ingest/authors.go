package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"socialfeed/internal/model"
)

// ErrAuthorID is returned for an author id that is not integer-valued.
var ErrAuthorID = errors.New("author_id is not an integer")

// DecodeRecords decodes the fields of each upstream row the job reads.
func DecodeRecords(rows []json.RawMessage) ([]model.UpstreamRecord, error) {
	out := make([]model.UpstreamRecord, 0, len(rows))
	for i, r := range rows {
		var rec model.UpstreamRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// FilterProvider keeps the records tagged with provider.
func FilterProvider(records []model.UpstreamRecord, provider string) []model.UpstreamRecord {
	var out []model.UpstreamRecord
	for _, r := range records {
		if r.ExternalProvider == provider {
			out = append(out, r)
		}
	}
	return out
}

// HasAuthor reports whether the record carries a non-null author id.
func HasAuthor(r model.UpstreamRecord) bool {
	v := bytes.TrimSpace(r.AuthorID)
	return len(v) > 0 && !bytes.Equal(v, []byte("null"))
}

// DistinctAuthors returns the unique integer author ids among records with
// a non-null author, in first-seen order. Integral floats (10.0) and
// numeric strings ("10") are accepted.
func DistinctAuthors(records []model.UpstreamRecord) ([]int64, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, r := range records {
		if !HasAuthor(r) {
			continue
		}
		id, err := authorID(r.AuthorID)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func authorID(raw json.RawMessage) (int64, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrAuthorID, raw)
	}
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, fmt.Errorf("%w: %s", ErrAuthorID, raw)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("%w: %s", ErrAuthorID, raw)
	}
	return int64(f), nil
}
