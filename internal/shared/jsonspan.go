package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ExtractJSON locates the JSON object in collaborator output that may carry
// log lines or other preamble around it.
//
// The outermost balanced {...} span is found by tracking brace depth, ignoring
// braces inside string literals. When no valid span exists the whole trimmed
// output is tried. Returns [ErrNoPayload] when neither parses.
func ExtractJSON(out []byte) ([]byte, error) {
	for start := 0; start < len(out); {
		i := bytes.IndexByte(out[start:], '{')
		if i < 0 {
			break
		}
		i += start
		if end, ok := matchBrace(out, i); ok {
			span := out[i : end+1]
			if json.Valid(span) {
				return span, nil
			}
		}
		start = i + 1
	}

	trimmed := bytes.TrimSpace(out)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return trimmed, nil
	}
	return nil, ErrNoPayload
}

// matchBrace returns the index of the brace closing the one at open.
func matchBrace(b []byte, open int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(b); i++ {
		c := b[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// DecodeJSON extracts the JSON payload from out and unmarshals it into v.
func DecodeJSON(out []byte, v any) error {
	span, err := ExtractJSON(out)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(span, v); err != nil {
		return fmt.Errorf("%w: %v", ErrNoPayload, err)
	}
	return nil
}
