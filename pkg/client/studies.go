package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Upstream paths.
const (
	PathStudies     = "/studies"
	PathMetadata    = "/studies/metadata"
	PathSearchAreas = "/studies/search-areas"
	PathEnums       = "/studies/enums"
	PathFieldValues = "/stats/field/values"
	PathFieldSizes  = "/stats/field/sizes"
	PathSize        = "/stats/size"
	PathVersion     = "/version"
)

// Search parameter names.
const (
	ParamPageSize   = "pageSize"
	ParamPageToken  = "pageToken"
	ParamCountTotal = "countTotal"
	ParamFields     = "fields"
)

// Study is one decoded study record.
type Study = map[string]any

// SearchRequest describes one page of a study search.
type SearchRequest struct {
	// Params are the query parameters, usually built by query.Translator.
	Params map[string]string

	PageSize   int
	PageToken  string
	CountTotal bool
}

// SearchPage is one page of search results.
type SearchPage struct {
	Studies       []Study `json:"studies"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	TotalCount    *int    `json:"totalCount,omitempty"`
}

// Study fetches a single study by NCT identifier.
func (c *Client) Study(ctx context.Context, nctID string, fields []string) (Study, error) {
	id := strings.ToUpper(strings.TrimSpace(nctID))
	endpoint := PathStudies + "/" + url.PathEscape(id)
	if id == "" {
		return nil, &APIError{
			ErrorClass: ErrorClassValidation,
			Endpoint:   endpoint,
			Message:    "nct id is required",
		}
	}

	var params map[string]string
	if len(fields) > 0 {
		params = map[string]string{ParamFields: strings.Join(fields, "|")}
	}

	body, err := c.Get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	study, ok := body.(map[string]any)
	if !ok {
		return nil, shapeError(endpoint, "study object")
	}
	return study, nil
}

// SearchStudies fetches one page of search results. The caller's params
// are not modified.
func (c *Client) SearchStudies(ctx context.Context, req SearchRequest) (*SearchPage, error) {
	params := make(map[string]string, len(req.Params)+3)
	for k, v := range req.Params {
		params[k] = v
	}
	if req.PageSize > 0 {
		params[ParamPageSize] = strconv.Itoa(req.PageSize)
	}
	if req.PageToken != "" {
		params[ParamPageToken] = req.PageToken
	}
	if req.CountTotal {
		params[ParamCountTotal] = "true"
	}

	body, err := c.Get(ctx, PathStudies, params)
	if err != nil {
		return nil, err
	}
	return parseSearchPage(body)
}

func parseSearchPage(body any) (*SearchPage, error) {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, shapeError(PathStudies, "search result object")
	}

	page := &SearchPage{}
	if raw, ok := obj["studies"].([]any); ok {
		page.Studies = make([]Study, 0, len(raw))
		for _, s := range raw {
			if study, ok := s.(map[string]any); ok {
				page.Studies = append(page.Studies, study)
			}
		}
	}
	page.NextPageToken = cast.ToString(obj["nextPageToken"])
	if raw, ok := obj["totalCount"]; ok && raw != nil {
		if n, err := cast.ToIntE(raw); err == nil {
			page.TotalCount = &n
		}
	}
	return page, nil
}

// Metadata returns the data model field tree as {"fields": [...]}.
func (c *Client) Metadata(ctx context.Context) (map[string]any, error) {
	return c.getWrapped(ctx, PathMetadata, "fields")
}

// SearchAreas returns the search area definitions as {"searchAreas": [...]}.
func (c *Client) SearchAreas(ctx context.Context) (map[string]any, error) {
	return c.getWrapped(ctx, PathSearchAreas, "searchAreas")
}

// Enums returns the enumeration types as {"enums": [...]}.
func (c *Client) Enums(ctx context.Context) (map[string]any, error) {
	return c.getWrapped(ctx, PathEnums, "enums")
}

// FieldValues returns value statistics for a field.
func (c *Client) FieldValues(ctx context.Context, field string) (any, error) {
	return c.Get(ctx, PathFieldValues, map[string]string{"types": field})
}

// FieldSizes returns list-size statistics for a field.
func (c *Client) FieldSizes(ctx context.Context, field string) (any, error) {
	return c.Get(ctx, PathFieldSizes, map[string]string{"fields": field})
}

// SizeStats returns overall registry size statistics.
func (c *Client) SizeStats(ctx context.Context) (any, error) {
	return c.Get(ctx, PathSize, nil)
}

// Version returns the API and data versions.
func (c *Client) Version(ctx context.Context) (map[string]any, error) {
	body, err := c.Get(ctx, PathVersion, nil)
	if err != nil {
		return nil, err
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, shapeError(PathVersion, "version object")
	}
	return obj, nil
}

// getWrapped fetches endpoint and wraps a bare list body under key.
func (c *Client) getWrapped(ctx context.Context, endpoint, key string) (map[string]any, error) {
	body, err := c.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	switch v := body.(type) {
	case []any:
		return map[string]any{key: v}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, shapeError(endpoint, "list or object")
	}
}

func shapeError(endpoint, want string) *APIError {
	return &APIError{
		ErrorClass: ErrorClassDecode,
		StatusCode: 200,
		Endpoint:   endpoint,
		Message:    "unexpected response shape, want " + want,
	}
}
