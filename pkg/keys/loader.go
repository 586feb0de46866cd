// Package keys loads the ISBNdb API key file and rotates through its keys.
//
// The key file is a YAML mapping of labels to secrets:
//
//	primary: ABCD1234
//	backup: EFGH5678
//
// Document order is the rotation order.
package keys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the key file name looked up in the home directory.
const DefaultFileName = ".isbndb.yml"

var (
	// ErrKeyFileNotFound is returned when the key file does not exist.
	ErrKeyFileNotFound = errors.New("key file not found")

	// ErrInvalidKeyFile is returned when the key file is not a mapping of scalars.
	ErrInvalidKeyFile = errors.New("invalid key file")
)

// Key is one labelled API key.
type Key struct {
	Label  string
	Secret string
}

// Masked returns the secret with all but the first four characters hidden.
func (k Key) Masked() string {
	if len(k.Secret) <= 4 {
		return "****"
	}
	return k.Secret[:4] + "****"
}

// KeySet is the ordered, immutable set of keys from one key file.
type KeySet struct {
	keys []Key
}

// NewKeySet builds a KeySet from keys in rotation order.
func NewKeySet(keys ...Key) *KeySet {
	cp := make([]Key, len(keys))
	copy(cp, keys)
	return &KeySet{keys: cp}
}

// Len returns the number of keys.
func (s *KeySet) Len() int {
	return len(s.keys)
}

// At returns the key at position i.
func (s *KeySet) At(i int) Key {
	return s.keys[i]
}

// Keys returns a copy of the keys in rotation order.
func (s *KeySet) Keys() []Key {
	cp := make([]Key, len(s.keys))
	copy(cp, s.keys)
	return cp
}

// IndexOf returns the position of the key with the given label, or -1.
func (s *KeySet) IndexOf(label string) int {
	for i, k := range s.keys {
		if k.Label == label {
			return i
		}
	}
	return -1
}

// DefaultPath returns ${HOME}/.isbndb.yml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultFileName), nil
}

// Load reads and parses the key file at path.
func Load(path string) (*KeySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyFileNotFound, path)
		}
		return nil, fmt.Errorf("read key file: %w", err)
	}

	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse decodes a YAML mapping into a KeySet, keeping document order.
// An empty document yields an empty set.
func Parse(data []byte) (*KeySet, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFile, err)
	}

	// Empty input decodes to a zero node.
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return NewKeySet(), nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return NewKeySet(), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: expected a mapping at line %d", ErrInvalidKeyFile, root.Line)
	}

	set := &KeySet{keys: make([]Key, 0, len(root.Content)/2)}
	for i := 0; i+1 < len(root.Content); i += 2 {
		label, value := root.Content[i], root.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: value for %q at line %d is not a scalar",
				ErrInvalidKeyFile, label.Value, value.Line)
		}
		// Rotation addresses keys by label, so labels must be unique.
		if set.IndexOf(label.Value) >= 0 {
			return nil, fmt.Errorf("%w: duplicate label %q at line %d",
				ErrInvalidKeyFile, label.Value, label.Line)
		}
		set.keys = append(set.keys, Key{Label: label.Value, Secret: value.Value})
	}

	return set, nil
}
