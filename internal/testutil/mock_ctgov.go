// Package testutil provides testing utilities for the ClinicalTrials.gov client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MockResponse defines the behavior for a mock registry endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPage is one page served by SetStudyPages.
type MockPage struct {
	Studies       []map[string]any
	NextPageToken string
}

// MockRegistry is a configurable mock of the registry API for testing.
type MockRegistry struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	requestCount int
	pathCounts   map[string]int
	queries      map[string][]url.Values
	lastHeader   http.Header
}

// NewMockRegistry creates a new mock registry server.
func NewMockRegistry() *MockRegistry {
	mock := &MockRegistry{
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
		queries:    make(map[string][]url.Values),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.queries[r.URL.Path] = append(mock.queries[r.URL.Path], r.URL.Query())
		mock.lastHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		writeJSON(w, http.StatusNotFound, `{"error": "no handler for path"}`)
	}))

	return mock
}

// URL returns the mock server URL, usable as the client base URL.
func (m *MockRegistry) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockRegistry) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockRegistry) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.queries = make(map[string][]url.Values)
	m.lastHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockRegistry) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockRegistry) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, resp.write)
}

// SetSequence serves the responses in order, one per request. The last
// response repeats once the sequence is used up.
func (m *MockRegistry) SetSequence(path string, resps ...MockResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[next]
		if next < len(resps)-1 {
			next++
		}
		mu.Unlock()
		resp.write(w, r)
	})
}

// SetStudyPages serves cursor-paged results on /studies. The first page
// answers requests without a pageToken; page i+1 answers the token page i
// returned. totalCount is included when countTotal=true is requested.
func (m *MockRegistry) SetStudyPages(pages ...MockPage) {
	byToken := make(map[string]MockPage, len(pages))
	total := 0
	token := ""
	for _, p := range pages {
		byToken[token] = p
		token = p.NextPageToken
		total += len(p.Studies)
	}

	m.SetHandler("/studies", func(w http.ResponseWriter, r *http.Request) {
		page, ok := byToken[r.URL.Query().Get("pageToken")]
		if !ok {
			writeJSON(w, http.StatusBadRequest, `{"error": "unknown page token"}`)
			return
		}

		body := map[string]any{"studies": page.Studies}
		if page.Studies == nil {
			body["studies"] = []any{}
		}
		if page.NextPageToken != "" {
			body["nextPageToken"] = page.NextPageToken
		}
		if r.URL.Query().Get("countTotal") == "true" {
			body["totalCount"] = total
		}

		data, err := json.Marshal(body)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, fmt.Sprintf(`{"error": %q}`, err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, string(data))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockRegistry) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests made to one path.
func (m *MockRegistry) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// Queries returns the query parameters of every request made to path, in
// arrival order.
func (m *MockRegistry) Queries(path string) []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.queries[path]))
	copy(out, m.queries[path])
	return out
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockRegistry) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

func (resp MockResponse) write(w http.ResponseWriter, r *http.Request) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	writeJSON(w, resp.StatusCode, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if body != "" {
		w.Write([]byte(body))
	}
}

// NewOKResponse creates a 200 OK response with a JSON body.
func NewOKResponse(body string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// NewValidationResponse creates a 400 Bad Request response.
func NewValidationResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error": "invalid filter.advanced expression"}`,
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "study not found"}`,
	}
}

// NewForbiddenResponse creates a 403 Forbidden response.
func NewForbiddenResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"error": "forbidden"}`,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response. A
// positive retryAfter sets the Retry-After header in seconds.
func NewRateLimitResponse(retryAfter int) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "rate limit exceeded"}`,
	}
	if retryAfter > 0 {
		resp.Headers = map[string]string{"Retry-After": strconv.Itoa(retryAfter)}
	}
	return resp
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "internal server error"}`,
	}
}

// NewStudy builds a minimal study record in the registry's nested shape.
func NewStudy(nctID, title string) map[string]any {
	return map[string]any{
		"protocolSection": map[string]any{
			"identificationModule": map[string]any{
				"nctId":      nctID,
				"briefTitle": title,
			},
			"statusModule": map[string]any{
				"overallStatus": "RECRUITING",
			},
		},
	}
}

// NewStudies builds n studies with sequential NCT identifiers starting at
// start.
func NewStudies(start, n int) []map[string]any {
	studies := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("NCT%08d", start+i)
		studies = append(studies, NewStudy(id, "Study "+id))
	}
	return studies
}
