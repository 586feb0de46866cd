// Package printer writes the flattened text form of a book collection:
//
//	title
//	publisher_name
//	author 1
//	author 2
//	>>>
//	(blank line)
package printer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Sternrassler/isbndb-books/pkg/store"
)

// Delimiter ends every book block.
const Delimiter = ">>>"

// Book is the part of a record the printer reads.
type Book struct {
	Title         Text     `json:"title"`
	PublisherName Text     `json:"publisher_name"`
	AuthorData    []Author `json:"author_data"`
}

// Author is one entry of author_data.
type Author struct {
	Name Text `json:"name"`
}

// Text is a printed field. A JSON string decodes to its value, null to
// the empty string, and any other value to its JSON text.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*t = Text(buf.String())
	}
	return nil
}

// DecodeBook reads the printed fields from a raw record. Absent fields are
// left empty.
func DecodeBook(raw json.RawMessage) (Book, error) {
	var b Book
	if err := json.Unmarshal(raw, &b); err != nil {
		return Book{}, err
	}
	return b, nil
}

// Flatten writes one block per record of c to w, in collection order.
// Each block reaches w before the next record is decoded, so a bad record
// leaves the blocks before it written.
func Flatten(w io.Writer, c store.Collection) error {
	for i, raw := range c {
		b, err := DecodeBook(raw)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if err := WriteBook(w, b); err != nil {
			return err
		}
	}
	return nil
}

// WriteBook writes a single block for b.
func WriteBook(w io.Writer, b Book) error {
	bw := bufio.NewWriter(w)
	if err := writeBook(bw, b); err != nil {
		return err
	}
	return bw.Flush()
}

func writeBook(w *bufio.Writer, b Book) error {
	lines := make([]string, 0, len(b.AuthorData)+4)
	lines = append(lines, string(b.Title), string(b.PublisherName))
	for _, a := range b.AuthorData {
		lines = append(lines, string(a.Name))
	}
	lines = append(lines, Delimiter, "")

	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}
