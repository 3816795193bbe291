package ingest

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"socialfeed/internal/model"
)

func decode(t *testing.T, lines ...string) []model.UpstreamRecord {
	t.Helper()
	rows := make([]json.RawMessage, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, json.RawMessage(l))
	}
	recs, err := DecodeRecords(rows)
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

func TestFilterAndDistinctAuthors(t *testing.T) {
	recs := decode(t,
		`{"external_provider":"twitter","author_id":10}`,
		`{"external_provider":"twitter","author_id":10}`,
		`{"external_provider":"other","author_id":20}`,
	)
	tw := FilterProvider(recs, model.ProviderTwitter)
	if len(tw) != 2 {
		t.Fatalf("filtered = %d, want 2", len(tw))
	}
	ids, err := DistinctAuthors(tw)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []int64{10}) {
		t.Fatalf("ids = %v", ids)
	}
}

func TestDistinctAuthorsCoercesAndSkipsNull(t *testing.T) {
	recs := decode(t,
		`{"external_provider":"twitter","author_id":3.0}`,
		`{"external_provider":"twitter","author_id":null}`,
		`{"external_provider":"twitter"}`,
		`{"external_provider":"twitter","author_id":"3"}`,
		`{"external_provider":"twitter","author_id":1234567890123456789}`,
		`{"external_provider":"twitter","author_id":" 5 "}`,
		`{"external_provider":"twitter","author_id":1e3}`,
	)
	ids, err := DistinctAuthors(recs)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{3, 1234567890123456789, 5, 1000}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
}

func TestDistinctAuthorsRejectsNonInteger(t *testing.T) {
	for _, line := range []string{
		`{"external_provider":"twitter","author_id":1.5}`,
		`{"external_provider":"twitter","author_id":"abc"}`,
		`{"external_provider":"twitter","author_id":true}`,
		`{"external_provider":"twitter","author_id":[1]}`,
	} {
		if _, err := DistinctAuthors(decode(t, line)); !errors.Is(err, ErrAuthorID) {
			t.Fatalf("%s: expected ErrAuthorID, got %v", line, err)
		}
	}
}

func TestFilterProviderNoMatch(t *testing.T) {
	recs := decode(t, `{"external_provider":"facebook","author_id":1}`, `{"author_id":2}`)
	if got := FilterProvider(recs, model.ProviderTwitter); len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestDecodeRecordsRejectsBadProvider(t *testing.T) {
	if _, err := DecodeRecords([]json.RawMessage{json.RawMessage(`{"external_provider":5}`)}); err == nil {
		t.Fatal("expected decode error")
	}
}
