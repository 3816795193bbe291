// Package jsonl reads and writes line-delimited JSON datasets. Rows are
// kept as raw bytes so field order and values survive a round trip.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const maxLine = 16 << 20

// Decode reads one JSON object per line. Blank lines are skipped.
func Decode(r io.Reader) ([]json.RawMessage, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	var rows []json.RawMessage
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] != '{' || !json.Valid(line) {
			return nil, fmt.Errorf("line %d: not a JSON object", n)
		}
		rows = append(rows, json.RawMessage(bytes.Clone(line)))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Encode writes rows one per line, each compacted and newline terminated.
func Encode(w io.Writer, rows []json.RawMessage) error {
	bw := bufio.NewWriter(w)
	var buf bytes.Buffer
	for i, row := range rows {
		buf.Reset()
		if err := json.Compact(&buf, row); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		buf.WriteByte('\n')
		if _, err := bw.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Marshal encodes rows into a byte slice.
func Marshal(rows []json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a byte slice produced by Marshal.
func Unmarshal(b []byte) ([]json.RawMessage, error) {
	return Decode(bytes.NewReader(b))
}
