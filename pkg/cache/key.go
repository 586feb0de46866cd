package cache

import (
	"fmt"
	"net/url"
	"strings"
)

// keyPrefix namespaces page entries in Redis.
const keyPrefix = "isbndb:page"

// PageKey identifies one page of one search.
type PageKey struct {
	// Query is the q parameter.
	Query string

	// Index is the i parameter (e.g. "combined", "publisher_name").
	Index string

	// Page is the p parameter.
	Page int
}

// String generates a deterministic Redis key.
// Format: isbndb:page:<index>:<escaped query>:<page>
//
// Example:
//
//	isbndb:page:publisher_name:Manning:3
func (k PageKey) String() string {
	index := strings.TrimSpace(k.Index)
	if index == "" {
		index = "-"
	}
	return fmt.Sprintf("%s:%s:%s:%d", keyPrefix, index, url.QueryEscape(k.Query), k.Page)
}
