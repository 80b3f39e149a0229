// Package json is the adapter's JSON codec. Encoding goes through
// bytedance/sonic; MarshalSorted is used wherever a body must be
// byte-identical for identical input, and RewriteLines handles the JSONL
// files batch jobs consume.
package json

import (
	"bufio"
	"bytes"
	stdjson "encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// RawMessage is a raw encoded JSON value.
type RawMessage = stdjson.RawMessage

// Marshal encodes v with sonic's default (unsorted) configuration.
func Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// MarshalSorted encodes v with map keys sorted.
func MarshalSorted(v any) ([]byte, error) {
	return sonic.ConfigStd.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// Valid reports whether data is one well-formed JSON value.
func Valid(data []byte) bool {
	return sonic.Valid(data)
}

// ReadError reports a JSONL document that could not be split into lines,
// typically a line longer than the limit.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return "read jsonl: " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }

// RewriteLines passes every non-blank line of a JSONL document to fn, with
// its 1-based line number, and writes fn's result back as one encoded line.
// A nil result drops the line. maxLine bounds a single line in bytes.
func RewriteLines(data []byte, maxLine int, fn func(line int, raw []byte) (any, error)) ([]byte, error) {
	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64<<10), maxLine)
	n := 0
	for scanner.Scan() {
		n++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		v, err := fn(n, raw)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		encoded, err := Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out.Write(encoded)
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, &ReadError{Err: err}
	}
	return out.Bytes(), nil
}
