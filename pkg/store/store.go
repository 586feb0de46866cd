// Package store persists the book collection as a JSON array on disk.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DefaultPath is the collection file shared by the fetch and print commands.
const DefaultPath = "books.json"

// ErrInvalidCollection indicates the file is not a JSON array.
var ErrInvalidCollection = errors.New("invalid book collection")

// Collection is an ordered list of book records. Records are kept as the
// raw JSON the API returned.
type Collection []json.RawMessage

// Append adds records in order and returns the extended collection.
func (c Collection) Append(records ...json.RawMessage) Collection {
	return append(c, records...)
}

// JSONStore reads and writes one collection file.
type JSONStore struct {
	path string
}

// New returns a store for path.
func New(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the file path.
func (s *JSONStore) Path() string {
	return s.path
}

// Load parses the file as a JSON array of records. A missing file yields
// an empty collection.
func (s *JSONStore) Load() (Collection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Collection{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	return Decode(data)
}

// Save serializes c as a JSON array, overwriting the file.
func (s *JSONStore) Save(c Collection) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Decode parses a JSON array of records.
func Decode(data []byte) (Collection, error) {
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCollection, err)
	}
	// "null" decodes to a nil slice.
	if c == nil {
		c = Collection{}
	}
	return c, nil
}

// Encode serializes c as a compact JSON array without HTML escaping, so
// record text stays as the API sent it. A nil collection encodes as [].
func Encode(c Collection) ([]byte, error) {
	if c == nil {
		c = Collection{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
