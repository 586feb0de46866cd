package printer

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/isbndb-books/pkg/store"
)

func collection(records ...string) store.Collection {
	c := make(store.Collection, len(records))
	for i, r := range records {
		c[i] = json.RawMessage(r)
	}
	return c
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name string
		in   store.Collection
		want string
	}{
		{
			name: "two authors",
			in:   collection(`{"title":"A","publisher_name":"P","author_data":[{"name":"X"},{"name":"Y"}]}`),
			want: "A\nP\nX\nY\n>>>\n\n",
		},
		{
			name: "books in order",
			in: collection(
				`{"title":"First","publisher_name":"Manning","author_data":[{"name":"One","id":"one"}]}`,
				`{"title":"Second","publisher_name":"Manning","author_data":[]}`,
			),
			want: "First\nManning\nOne\n>>>\n\nSecond\nManning\n>>>\n\n",
		},
		{
			name: "missing fields print empty",
			in:   collection(`{"isbn13":"978"}`),
			want: "\n\n>>>\n\n",
		},
		{
			name: "no escaping",
			in:   collection(`{"title":"Tabs\tand >>> marks","publisher_name":"A & B","author_data":[{"name":"Zoë"}]}`),
			want: "Tabs\tand >>> marks\nA & B\nZoë\n>>>\n\n",
		},
		{
			name: "empty collection",
			in:   store.Collection{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Flatten(&buf, tt.in))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestFlatten_NonObjectRecord(t *testing.T) {
	var buf bytes.Buffer
	err := Flatten(&buf, collection(`{"title":"ok"}`, `"just a string"`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 1")
	assert.Equal(t, "ok\n\n>>>\n\n", buf.String(), "blocks before the bad record are written")
}

func TestFlatten_EarlierBlocksSurviveLaterError(t *testing.T) {
	var buf bytes.Buffer
	err := Flatten(&buf, collection(
		`{"title":"A","publisher_name":"P","author_data":[]}`,
		`{"title":"B","publisher_name":"Q","author_data":[{"name":"X"}]}`,
		`[1,2,3]`,
		`{"title":"never printed"}`,
	))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 2")
	assert.Equal(t, "A\nP\n>>>\n\nB\nQ\nX\n>>>\n\n", buf.String())
}

func TestFlatten_ScalarFieldsPrintAsJSONText(t *testing.T) {
	var buf bytes.Buffer
	err := Flatten(&buf, collection(
		`{"title":1984,"publisher_name":true,"author_data":[{"name":3.5},{"name":null},{"name":"Orwell"}]}`,
	))

	require.NoError(t, err)
	assert.Equal(t, "1984\ntrue\n3.5\n\nOrwell\n>>>\n\n", buf.String())
}

func TestText_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Text
	}{
		{`"plain"`, "plain"},
		{`"esc\"aped"`, `esc"aped`},
		{`null`, ""},
		{`42`, "42"},
		{`false`, "false"},
		{`{"a": 1}`, `{"a":1}`},
		{`[ 1, 2 ]`, `[1,2]`},
	}

	for _, tt := range tests {
		var got Text
		require.NoError(t, json.Unmarshal([]byte(tt.in), &got), tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFlatten_WrongFieldType(t *testing.T) {
	var buf bytes.Buffer
	err := Flatten(&buf, collection(`{"title":"A","author_data":"Nobody"}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 0")
}

func TestWriteBook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBook(&buf, Book{
		Title:         "Go in Action",
		PublisherName: "Manning Publications",
		AuthorData:    []Author{{Name: "William Kennedy"}, {Name: "Brian Ketelsen"}},
	}))

	assert.Equal(t, "Go in Action\nManning Publications\nWilliam Kennedy\nBrian Ketelsen\n>>>\n\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestFlatten_WriteError(t *testing.T) {
	err := Flatten(failingWriter{}, collection(`{"title":"A"}`))
	assert.Error(t, err)
}
