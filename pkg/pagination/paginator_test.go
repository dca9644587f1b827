package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Sternrassler/ctgov-client/internal/testutil"
	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/rs/zerolog"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// Cache partitions run an expiry goroutine for the life of the process.
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("github.com/hashicorp/golang-lru/v2/expirable.NewLRU[...].func1"),
	)
}

// fakeSearcher serves pages keyed by page token and records every request.
type fakeSearcher struct {
	mu       sync.Mutex
	pages    map[string]*client.SearchPage
	failOn   string
	err      error
	requests []client.SearchRequest
}

func newFakeSearcher(sizes ...int) *fakeSearcher {
	f := &fakeSearcher{pages: make(map[string]*client.SearchPage)}
	tokens := []string{"", "A", "B", "C", "D", "E"}
	n := 0
	for i, size := range sizes {
		page := &client.SearchPage{}
		for j := 0; j < size; j++ {
			n++
			page.Studies = append(page.Studies, client.Study{"nctId": fmt.Sprintf("NCT%08d", n)})
		}
		if i < len(sizes)-1 {
			page.NextPageToken = tokens[i+1]
		}
		f.pages[tokens[i]] = page
	}
	return f
}

func (f *fakeSearcher) SearchStudies(ctx context.Context, req client.SearchRequest) (*client.SearchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if f.err != nil && req.PageToken == f.failOn {
		return nil, f.err
	}
	page, ok := f.pages[req.PageToken]
	if !ok {
		return nil, fmt.Errorf("unknown token %q", req.PageToken)
	}
	out := *page
	if req.CountTotal {
		total := 0
		for _, p := range f.pages {
			total += len(p.Studies)
		}
		out.TotalCount = &total
	}
	return &out, nil
}

func (f *fakeSearcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func TestClampPageSize(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-5, DefaultPageSize},
		{0, DefaultPageSize},
		{1, 1},
		{250, 250},
		{1000, 1000},
		{1001, MaxPageSize},
		{50000, MaxPageSize},
	}

	for _, tt := range tests {
		if got := ClampPageSize(tt.in); got != tt.want {
			t.Errorf("ClampPageSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFetchAll_FollowsTokensToEnd(t *testing.T) {
	f := newFakeSearcher(3, 3, 3)
	p := NewPaginator(f)

	res, err := p.FetchAll(context.Background(), map[string]string{"query.cond": "asthma"}, FetchOptions{PageSize: 3})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(res.Studies) != 9 {
		t.Errorf("len(Studies) = %d, want 9", len(res.Studies))
	}
	if res.FetchedCount != 9 {
		t.Errorf("FetchedCount = %d, want 9", res.FetchedCount)
	}
	if f.calls() != 3 {
		t.Errorf("calls = %d, want 3", f.calls())
	}
	if res.Studies[0]["nctId"] != "NCT00000001" || res.Studies[8]["nctId"] != "NCT00000009" {
		t.Errorf("studies out of order: first %v last %v", res.Studies[0], res.Studies[8])
	}

	wantTokens := []string{"", "A", "B"}
	for i, req := range f.requests {
		if req.PageToken != wantTokens[i] {
			t.Errorf("request %d token = %q, want %q", i, req.PageToken, wantTokens[i])
		}
	}
}

func TestFetchAll_MaxResultsTruncates(t *testing.T) {
	f := newFakeSearcher(3, 3, 3)
	p := NewPaginator(f)

	res, err := p.FetchAll(context.Background(), nil, FetchOptions{MaxResults: 5, PageSize: 3})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(res.Studies) != 5 {
		t.Errorf("len(Studies) = %d, want 5", len(res.Studies))
	}
	if res.FetchedCount != 5 {
		t.Errorf("FetchedCount = %d, want 5", res.FetchedCount)
	}
	if f.calls() != 2 {
		t.Errorf("calls = %d, want 2", f.calls())
	}
	for _, req := range f.requests {
		if req.PageSize != 3 {
			t.Errorf("PageSize = %d, want 3 on every page", req.PageSize)
		}
	}
}

func TestFetchAll_CountTotalFirstPageOnly(t *testing.T) {
	f := newFakeSearcher(2, 2, 1)
	p := NewPaginator(f)

	res, err := p.FetchAll(context.Background(), nil, FetchOptions{CountTotal: true})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if res.TotalCount == nil || *res.TotalCount != 5 {
		t.Errorf("TotalCount = %v, want 5", res.TotalCount)
	}
	for i, req := range f.requests {
		if want := i == 0; req.CountTotal != want {
			t.Errorf("request %d CountTotal = %v, want %v", i, req.CountTotal, want)
		}
	}
}

func TestFetchAll_ErrorDiscardsResults(t *testing.T) {
	f := newFakeSearcher(3, 3, 3)
	f.failOn = "B"
	f.err = &client.APIError{ErrorClass: client.ErrorClassServer, StatusCode: 500, Endpoint: "/studies"}
	p := NewPaginator(f)

	res, err := p.FetchAll(context.Background(), nil, FetchOptions{})
	if res != nil {
		t.Errorf("FetchAll() result = %+v, want nil on error", res)
	}
	if err != f.err {
		t.Errorf("FetchAll() error = %v, want the searcher error unchanged", err)
	}
	if !errors.Is(err, client.ErrTransport) {
		t.Errorf("errors.Is(ErrTransport) = false for %v", err)
	}
}

func TestFetchAll_DoesNotMutateParams(t *testing.T) {
	f := newFakeSearcher(1)
	p := NewPaginator(f)
	params := map[string]string{"query.cond": "asthma"}

	if _, err := p.FetchAll(context.Background(), params, FetchOptions{PageSize: 5000}); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(params) != 1 || params["query.cond"] != "asthma" {
		t.Errorf("params = %v, want unchanged", params)
	}
	if f.requests[0].PageSize != MaxPageSize {
		t.Errorf("PageSize = %d, want %d", f.requests[0].PageSize, MaxPageSize)
	}
}

func TestFetchAll_EmptyResult(t *testing.T) {
	f := newFakeSearcher(0)
	p := NewPaginator(f)

	res, err := p.FetchAll(context.Background(), nil, FetchOptions{})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if res.Studies == nil || len(res.Studies) != 0 {
		t.Errorf("Studies = %v, want empty non-nil slice", res.Studies)
	}
}

func TestStream_IsLazy(t *testing.T) {
	f := newFakeSearcher(2, 2, 2)
	p := NewPaginator(f)

	seq := p.Stream(context.Background(), nil, 2)
	if f.calls() != 0 {
		t.Fatalf("calls before iteration = %d, want 0", f.calls())
	}

	batches := 0
	for studies, err := range seq {
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		batches++
		// The next page is not requested while this batch is being consumed.
		if f.calls() != batches {
			t.Errorf("calls while consuming batch %d = %d, want %d", batches, f.calls(), batches)
		}
		if len(studies) != 2 {
			t.Errorf("batch %d size = %d, want 2", batches, len(studies))
		}
	}

	if batches != 3 {
		t.Errorf("batches = %d, want 3", batches)
	}
}

func TestStream_EarlyBreakStopsFetching(t *testing.T) {
	f := newFakeSearcher(2, 2, 2)
	p := NewPaginator(f)

	for range p.Stream(context.Background(), nil, 2) {
		break
	}
	if f.calls() != 1 {
		t.Errorf("calls = %d, want 1", f.calls())
	}
}

func TestStream_SkipsEmptyPages(t *testing.T) {
	f := newFakeSearcher(2, 0, 1)
	p := NewPaginator(f)

	var sizes []int
	for studies, err := range p.Stream(context.Background(), nil, 0) {
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		sizes = append(sizes, len(studies))
	}

	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 1 {
		t.Errorf("batch sizes = %v, want [2 1]", sizes)
	}
	if f.calls() != 3 {
		t.Errorf("calls = %d, want 3", f.calls())
	}
	if f.requests[0].PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", f.requests[0].PageSize, DefaultPageSize)
	}
}

func TestStream_ErrorEndsSequence(t *testing.T) {
	f := newFakeSearcher(2, 2, 2)
	f.failOn = "A"
	f.err = errors.New("boom")
	p := NewPaginator(f)

	var batches int
	var gotErr error
	for _, err := range p.Stream(context.Background(), nil, 2) {
		if err != nil {
			gotErr = err
			continue
		}
		batches++
	}

	if batches != 1 {
		t.Errorf("batches before error = %d, want 1", batches)
	}
	if gotErr != f.err {
		t.Errorf("error = %v, want %v", gotErr, f.err)
	}
	if f.calls() != 2 {
		t.Errorf("calls = %d, want 2", f.calls())
	}
}

func TestStream_Restartable(t *testing.T) {
	f := newFakeSearcher(1, 1)
	p := NewPaginator(f)
	seq := p.Stream(context.Background(), nil, 1)

	for i := 0; i < 2; i++ {
		for _, err := range seq {
			if err != nil {
				t.Fatalf("Stream() error = %v", err)
			}
		}
	}
	if f.calls() != 4 {
		t.Errorf("calls = %d, want 4 (two full passes)", f.calls())
	}
}

func TestFetchPage(t *testing.T) {
	f := newFakeSearcher(3, 3)
	p := NewPaginator(f)

	page, err := p.FetchPage(context.Background(), map[string]string{"query.cond": "copd"}, PageOptions{
		PageSize:   -1,
		PageToken:  "A",
		CountTotal: true,
	})
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if f.calls() != 1 {
		t.Errorf("calls = %d, want 1", f.calls())
	}
	req := f.requests[0]
	if req.PageToken != "A" || req.PageSize != DefaultPageSize || !req.CountTotal {
		t.Errorf("request = %+v", req)
	}
	if page.NextPageToken != "" {
		t.Errorf("NextPageToken = %q, want empty", page.NextPageToken)
	}
	if page.TotalCount == nil || *page.TotalCount != 6 {
		t.Errorf("TotalCount = %v, want 6", page.TotalCount)
	}
}

func TestFetchAll_AgainstRegistry(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	mock.SetStudyPages(
		testutil.MockPage{Studies: testutil.NewStudies(1, 3), NextPageToken: "A"},
		testutil.MockPage{Studies: testutil.NewStudies(4, 3), NextPageToken: "B"},
		testutil.MockPage{Studies: testutil.NewStudies(7, 3), NextPageToken: "C"},
		testutil.MockPage{Studies: testutil.NewStudies(10, 1)},
	)

	cfg := client.DefaultConfig()
	cfg.BaseURL = mock.URL()
	logger := zerolog.Nop()
	cfg.Logger = &logger
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	defer c.Close()

	res, err := NewPaginator(c).FetchAll(context.Background(), map[string]string{"query.cond": "asthma"}, FetchOptions{
		PageSize:   3,
		CountTotal: true,
	})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if res.FetchedCount != 10 {
		t.Errorf("FetchedCount = %d, want 10", res.FetchedCount)
	}
	if res.TotalCount == nil || *res.TotalCount != 10 {
		t.Errorf("TotalCount = %v, want 10", res.TotalCount)
	}
	if got := mock.PathCount("/studies"); got != 4 {
		t.Errorf("requests = %d, want 4", got)
	}

	queries := mock.Queries("/studies")
	if queries[0].Get("countTotal") != "true" {
		t.Error("first page did not request countTotal")
	}
	for _, q := range queries[1:] {
		if q.Has("countTotal") {
			t.Errorf("later page requested countTotal: %v", q)
		}
	}
}
