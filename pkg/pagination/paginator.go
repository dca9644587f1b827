package pagination

import (
	"context"
	"iter"
	"maps"

	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/Sternrassler/ctgov-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Page size bounds of the upstream search endpoint.
const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

var pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ctgov_pages_fetched_total",
	Help: "Total search pages fetched by access mode",
}, []string{"mode"}) // "all", "stream", "page"

// Searcher fetches one page of search results. *client.Client implements it.
type Searcher interface {
	SearchStudies(ctx context.Context, req client.SearchRequest) (*client.SearchPage, error)
}

// FetchOptions controls FetchAll.
type FetchOptions struct {
	// MaxResults caps the number of studies returned. 0 means no cap.
	MaxResults int

	// PageSize is clamped with ClampPageSize.
	PageSize int

	// CountTotal requests the total match count on the first page.
	CountTotal bool
}

// PageOptions controls FetchPage.
type PageOptions struct {
	PageSize   int
	PageToken  string
	CountTotal bool
}

// Result is the outcome of FetchAll.
type Result struct {
	Studies      []client.Study `json:"studies"`
	TotalCount   *int           `json:"totalCount,omitempty"`
	FetchedCount int            `json:"fetchedCount"`
}

// Paginator drives cursor-token pagination over a Searcher. It holds no
// per-fetch state and is safe for concurrent use.
type Paginator struct {
	searcher Searcher
	logger   zerolog.Logger
}

// NewPaginator creates a paginator over searcher.
func NewPaginator(searcher Searcher) *Paginator {
	return &Paginator{
		searcher: searcher,
		logger:   logging.NewLogger(logging.ComponentPagination),
	}
}

// ClampPageSize maps non-positive sizes to DefaultPageSize and caps the
// rest at MaxPageSize.
func ClampPageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

// FetchAll follows page tokens until the results are exhausted or
// MaxResults studies have been collected. The total count is requested on
// the first page only. Studies beyond MaxResults in the last page are
// dropped. On error nothing is returned but the error.
func (p *Paginator) FetchAll(ctx context.Context, params map[string]string, opts FetchOptions) (*Result, error) {
	pageSize := ClampPageSize(opts.PageSize)
	params = maps.Clone(params)

	result := &Result{Studies: []client.Study{}}
	token := ""
	pages := 0

	for {
		page, err := p.searcher.SearchStudies(ctx, client.SearchRequest{
			Params:     params,
			PageSize:   pageSize,
			PageToken:  token,
			CountTotal: opts.CountTotal && pages == 0,
		})
		if err != nil {
			p.logger.Debug().Err(err).Int("pages", pages).Msg("Fetch aborted")
			return nil, err
		}
		pages++
		pagesFetchedTotal.WithLabelValues("all").Inc()

		if pages == 1 {
			result.TotalCount = page.TotalCount
		}
		result.Studies = append(result.Studies, page.Studies...)

		if opts.MaxResults > 0 && len(result.Studies) >= opts.MaxResults {
			result.Studies = result.Studies[:opts.MaxResults]
			break
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	result.FetchedCount = len(result.Studies)
	p.logger.Debug().
		Int("pages", pages).
		Int("fetched", result.FetchedCount).
		Msg("Fetch complete")
	return result, nil
}

// Stream returns a lazy sequence of non-empty pages. Each page is fetched
// only when the consumer asks for the next element; an error is yielded
// once and ends the sequence. Ranging over the sequence again starts a new
// fetch from the first page.
func (p *Paginator) Stream(ctx context.Context, params map[string]string, pageSize int) iter.Seq2[[]client.Study, error] {
	pageSize = ClampPageSize(pageSize)
	params = maps.Clone(params)

	return func(yield func([]client.Study, error) bool) {
		token := ""
		for {
			page, err := p.searcher.SearchStudies(ctx, client.SearchRequest{
				Params:    params,
				PageSize:  pageSize,
				PageToken: token,
			})
			if err != nil {
				yield(nil, err)
				return
			}
			pagesFetchedTotal.WithLabelValues("stream").Inc()

			if len(page.Studies) > 0 && !yield(page.Studies, nil) {
				return
			}
			if page.NextPageToken == "" {
				return
			}
			token = page.NextPageToken
		}
	}
}

// FetchPage fetches exactly one page.
func (p *Paginator) FetchPage(ctx context.Context, params map[string]string, opts PageOptions) (*client.SearchPage, error) {
	page, err := p.searcher.SearchStudies(ctx, client.SearchRequest{
		Params:     maps.Clone(params),
		PageSize:   ClampPageSize(opts.PageSize),
		PageToken:  opts.PageToken,
		CountTotal: opts.CountTotal,
	})
	if err != nil {
		return nil, err
	}
	pagesFetchedTotal.WithLabelValues("page").Inc()
	return page, nil
}
