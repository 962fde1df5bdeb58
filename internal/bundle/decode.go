package bundle

import (
	"encoding/json"
	"fmt"
	"io"
)

type sourceRecord struct {
	Content string `json:"content"`
}

// Decode reads a compiler-input JSON document and returns its sources in the
// order they appear in the "sources" object. Every other top-level key is
// skipped. main is recorded as the bundle's main path as given.
func Decode(r io.Reader, main string) (*Bundle, error) {
	dec := json.NewDecoder(r)

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	b := New(main)
	found := false
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}

		if key != "sources" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("skipping %q: %w", key, err)
			}
			continue
		}

		found = true
		if err := decodeSources(dec, b); err != nil {
			return nil, err
		}
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("compiler input has no sources")
	}
	return b, nil
}

func decodeSources(dec *json.Decoder, b *Bundle) error {
	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf("decoding sources: %w", err)
	}

	for dec.More() {
		path, err := readKey(dec)
		if err != nil {
			return fmt.Errorf("decoding sources: %w", err)
		}

		var rec sourceRecord
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("decoding source %q: %w", path, err)
		}
		b.Add(path, rec.Content)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return fmt.Errorf("decoding sources: %w", err)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
