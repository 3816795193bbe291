package jsonl

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRoundTripKeepsFieldOrder(t *testing.T) {
	rows := []json.RawMessage{
		json.RawMessage(`{"z":1,"a":"x","m":[1,2]}`),
		json.RawMessage(`{"id":"9007199254740993","text":"héllo\nworld"}`),
	}
	b, err := Marshal(rows)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(rows) {
		t.Fatalf("rows = %d, want %d", len(got), len(rows))
	}
	for i := range rows {
		if string(got[i]) != string(rows[i]) {
			t.Fatalf("row %d: got %s want %s", i, got[i], rows[i])
		}
	}
}

func TestEncodeCompactsAndTerminates(t *testing.T) {
	b, err := Marshal([]json.RawMessage{json.RawMessage("{ \"a\" : 1 }")})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{\"a\":1}\n" {
		t.Fatalf("got %q", b)
	}
}

func TestEmptyDataset(t *testing.T) {
	b, err := Marshal(nil)
	if err != nil || len(b) != 0 {
		t.Fatalf("expected empty output, got %q %v", b, err)
	}
	rows, err := Unmarshal(b)
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected no rows, got %d %v", len(rows), err)
	}
}

func TestDecodeSkipsBlankLines(t *testing.T) {
	rows, err := Decode(strings.NewReader("{\"a\":1}\n\n  \n{\"a\":2}"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, in := range []string{"[1,2]\n", "{\"a\":\n", "42\n"} {
		if _, err := Decode(strings.NewReader(in)); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}
