// Package testutil provides a mock ISBNdb server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// booksPathPrefix and booksPathSuffix wrap the key in the books path.
const (
	booksPathPrefix = "/api/v2/json/"
	booksPathSuffix = "/books"
)

// MockResponse defines the behavior for one mock response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// Request is one request seen by the mock.
type Request struct {
	Key       string
	Query     string
	Index     string
	Page      int
	Opt       string
	UserAgent string
}

// MockISBNdb is a configurable mock of the ISBNdb v2 books endpoint.
type MockISBNdb struct {
	server *httptest.Server
	mu     sync.RWMutex

	pages    map[int]MockResponse
	rejected map[string]MockResponse
	fallback MockResponse

	requests []Request
}

// NewMockISBNdb creates a mock whose unconfigured pages return an empty
// data array.
func NewMockISBNdb() *MockISBNdb {
	mock := &MockISBNdb{
		pages:    make(map[int]MockResponse),
		rejected: make(map[string]MockResponse),
		fallback: NewBooksResponse(),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockISBNdb) URL() string {
	return m.server.URL
}

// EndpointTemplate returns the books endpoint with a {key} placeholder.
func (m *MockISBNdb) EndpointTemplate() string {
	return m.server.URL + booksPathPrefix + "{key}" + booksPathSuffix
}

// Close shuts down the mock server.
func (m *MockISBNdb) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockISBNdb) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetPage configures the response for page p.
func (m *MockISBNdb) SetPage(p int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[p] = resp
}

// SetDefault configures the response for pages without their own.
func (m *MockISBNdb) SetDefault(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// RejectKey makes every request with secret answer resp, whatever the page.
func (m *MockISBNdb) RejectKey(secret string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[secret] = resp
}

// Requests returns a copy of the requests seen so far.
func (m *MockISBNdb) Requests() []Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockISBNdb) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// KeysSeen returns the secret of each request in order.
func (m *MockISBNdb) KeysSeen() []string {
	reqs := m.Requests()
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Key
	}
	return out
}

func (m *MockISBNdb) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, booksPathPrefix) || !strings.HasSuffix(r.URL.Path, booksPathSuffix) {
		http.NotFound(w, r)
		return
	}
	key := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, booksPathPrefix), booksPathSuffix)

	params := r.URL.Query()
	page, _ := strconv.Atoi(params.Get("p"))

	m.mu.Lock()
	m.requests = append(m.requests, Request{
		Key:       key,
		Query:     params.Get("q"),
		Index:     params.Get("i"),
		Page:      page,
		Opt:       params.Get("opt"),
		UserAgent: r.Header.Get("User-Agent"),
	})
	resp, ok := m.rejected[key]
	if !ok {
		resp, ok = m.pages[page]
	}
	if !ok {
		resp = m.fallback
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// Book builds a book record as ISBNdb returns it.
func Book(title, publisher string, authors ...string) string {
	type author struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	rec := struct {
		BookID     string   `json:"book_id"`
		Title      string   `json:"title"`
		Publisher  string   `json:"publisher_name"`
		AuthorData []author `json:"author_data"`
	}{
		BookID:     strings.ToLower(strings.ReplaceAll(title, " ", "_")),
		Title:      title,
		Publisher:  publisher,
		AuthorData: []author{},
	}
	for _, a := range authors {
		rec.AuthorData = append(rec.AuthorData, author{ID: strings.ToLower(strings.ReplaceAll(a, " ", "_")), Name: a})
	}
	data, err := json.Marshal(rec)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// NewBooksResponse creates a 200 response whose data array holds records.
func NewBooksResponse(records ...string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"index_searched":"publisher_name","data":[%s]}`, strings.Join(records, ",")),
	}
}

// NewBooksResponseWithStats is NewBooksResponse plus a keystats block.
func NewBooksResponseWithStats(requests, limit int, records ...string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(`{"index_searched":"publisher_name","data":[%s],"keystats":{"member_use_granted":0,"free_use_limit":%d,"requests":%d,"member_use_requests":0,"daily_max_hits":%d}}`,
			strings.Join(records, ","), limit, requests, limit),
	}
}

// NewLimitResponse creates the 200 error body ISBNdb sends for a spent key.
func NewLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"error":"Daily request limit exceeded, limit is 500 requests"}`,
	}
}

// NewInvalidKeyResponse creates the 200 error body for an unknown key.
func NewInvalidKeyResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"error":"Invalid api key"}`,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewNoResultsResponse creates the 200 error body for a search with no hits.
func NewNoResultsResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"error":"Unable to locate Nonexistent"}`,
	}
}
