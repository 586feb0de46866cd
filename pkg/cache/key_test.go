package cache

import (
	"testing"
	"time"
)

func TestPageKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  PageKey
		want string
	}{
		{
			name: "simple",
			key:  PageKey{Query: "Manning", Index: "publisher_name", Page: 3},
			want: "isbndb:page:publisher_name:Manning:3",
		},
		{
			name: "query is escaped",
			key:  PageKey{Query: "go in action", Index: "combined", Page: 1},
			want: "isbndb:page:combined:go+in+action:1",
		},
		{
			name: "colon in query cannot collide with separators",
			key:  PageKey{Query: "a:b", Index: "combined", Page: 1},
			want: "isbndb:page:combined:a%3Ab:1",
		},
		{
			name: "empty index",
			key:  PageKey{Query: "x", Page: 7},
			want: "isbndb:page:-:x:7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	e := NewEntry([]byte("{}"), time.Hour)
	if e.IsExpired() {
		t.Error("new entry should not be expired")
	}
	if ttl := e.TTL(); ttl <= 59*time.Minute || ttl > time.Hour {
		t.Errorf("TTL() = %v, want about 1h", ttl)
	}

	old := &Entry{Expires: time.Now().Add(-time.Second)}
	if !old.IsExpired() {
		t.Error("past entry should be expired")
	}
	if old.TTL() != 0 {
		t.Errorf("TTL() = %v, want 0", old.TTL())
	}
}
