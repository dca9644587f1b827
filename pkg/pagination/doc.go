// Package pagination turns the registry's cursor-token search pages into
// complete or streamed result sets.
//
// The upstream returns an opaque nextPageToken with every page that has a
// successor. A fetch starts without a token and ends at the first page
// without one:
//
//	INIT → FETCHING(token) → FETCHING(next) | DONE
//
// Example usage:
//
//	p := pagination.NewPaginator(ctgovClient)
//	res, err := p.FetchAll(ctx, params, pagination.FetchOptions{MaxResults: 200, CountTotal: true})
//
//	for studies, err := range p.Stream(ctx, params, 100) {
//		if err != nil {
//			return err
//		}
//		process(studies)
//	}
//
// All three access patterns clamp the page size with ClampPageSize and
// copy the caller's parameters before use.
//
// BatchFetcher is the by-identifier counterpart: it looks up a list of
// studies concurrently with a bounded worker pool and keeps per-study
// failures apart from the results that succeeded.
package pagination
