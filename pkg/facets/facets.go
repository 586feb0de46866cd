// Package facets counts discrete author and publisher values over a book
// collection, ordered by count.
package facets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Sternrassler/isbndb-books/pkg/printer"
	"github.com/Sternrassler/isbndb-books/pkg/store"
)

// DefaultMaxFacets is the number of facets reported when no limit is given.
const DefaultMaxFacets = 10

// Facet is one value and the number of books carrying it.
type Facet struct {
	Value string
	Count int
}

// Authors counts books per author name. A book listing the same author
// twice counts once.
func Authors(c store.Collection, limit int) ([]Facet, error) {
	return count(c, limit, func(b printer.Book) []string {
		names := make([]string, 0, len(b.AuthorData))
		for _, a := range b.AuthorData {
			names = append(names, string(a.Name))
		}
		return names
	})
}

// Publishers counts books per publisher name.
func Publishers(c store.Collection, limit int) ([]Facet, error) {
	return count(c, limit, func(b printer.Book) []string {
		return []string{string(b.PublisherName)}
	})
}

// count orders facets by count descending, then value ascending. Blank
// values are skipped and limit <= 0 means DefaultMaxFacets.
func count(c store.Collection, limit int, values func(printer.Book) []string) ([]Facet, error) {
	if limit <= 0 {
		limit = DefaultMaxFacets
	}

	counts := make(map[string]int)
	for i, raw := range c {
		b, err := printer.DecodeBook(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		seen := make(map[string]bool)
		for _, v := range values(b) {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			counts[v]++
		}
	}

	out := make([]Facet, 0, len(counts))
	for v, n := range counts {
		out = append(out, Facet{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
