// Package tools implements the clinical trial tools exposed over MCP on
// top of the client, translator and paginator.
package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/Sternrassler/ctgov-client/pkg/logging"
	"github.com/Sternrassler/ctgov-client/pkg/pagination"
	"github.com/Sternrassler/ctgov-client/pkg/query"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultSearchLimit is used when a search does not set a limit.
	DefaultSearchLimit = 50

	// MaxSearchLimit caps a single search.
	MaxSearchLimit = 1000
)

// Depth selects how much of each study TrialDetails retrieves.
type Depth string

const (
	DepthSummary       Depth = "SUMMARY"
	DepthStandard      Depth = "STANDARD"
	DepthComprehensive Depth = "COMPREHENSIVE"
)

// ParseDepth maps a caller value to a Depth, defaulting to DepthStandard.
func ParseDepth(s string) Depth {
	switch d := Depth(strings.ToUpper(strings.TrimSpace(s))); d {
	case DepthSummary, DepthComprehensive:
		return d
	default:
		return DepthStandard
	}
}

// fields returns the field selection for d. Comprehensive requests the
// full record.
func (d Depth) fields() []string {
	switch d {
	case DepthSummary:
		return query.SummaryFields
	case DepthComprehensive:
		return nil
	default:
		return query.StandardFields
	}
}

// Scope selects which schema sections MetadataSchema returns.
type Scope string

const (
	ScopeFields      Scope = "FIELDS"
	ScopeSearchAreas Scope = "SEARCH_AREAS"
	ScopeEnums       Scope = "ENUMS"
	ScopeStatistics  Scope = "STATISTICS"
	ScopeAll         Scope = "ALL"
)

// ParseScope maps a caller value to a Scope, defaulting to ScopeFields.
func ParseScope(s string) Scope {
	switch sc := Scope(strings.ToUpper(strings.TrimSpace(s))); sc {
	case ScopeSearchAreas, ScopeEnums, ScopeStatistics, ScopeAll:
		return sc
	default:
		return ScopeFields
	}
}

func (s Scope) includes(part Scope) bool {
	return s == ScopeAll || s == part
}

// Service implements the trial tools. It is safe for concurrent use.
type Service struct {
	client     *client.Client
	translator *query.Translator
	paginator  *pagination.Paginator
	batch      *pagination.BatchFetcher
	logger     zerolog.Logger
}

// NewService wires a service around c.
func NewService(c *client.Client, logger zerolog.Logger) *Service {
	return &Service{
		client:     c,
		translator: query.NewTranslator(),
		paginator:  pagination.NewPaginator(c),
		batch:      pagination.NewBatchFetcher(c, pagination.DefaultBatchConfig()),
		logger:     logging.WithComponent(logger, logging.ComponentTools),
	}
}

// SearchArgs are the inputs of SearchTrials.
type SearchArgs struct {
	query.SearchIntent

	// Limit caps the number of returned studies (default 50, max 1000)
	Limit int `json:"limit,omitempty"`
}

// SearchResult is the output of SearchTrials.
type SearchResult struct {
	Studies       []TrialSummary    `json:"studies"`
	TotalCount    *int              `json:"total_count,omitempty"`
	ReturnedCount int               `json:"returned_count"`
	QueryUsed     string            `json:"query_used"`
	Params        map[string]string `json:"params"`
	ElapsedMs     int64             `json:"execution_time_ms"`
}

// SearchTrials translates args into query parameters and collects up to
// args.Limit matching studies.
func (s *Service) SearchTrials(ctx context.Context, args SearchArgs) (*SearchResult, error) {
	start := time.Now()

	intent := args.SearchIntent
	if intent.SortBy == "" {
		intent.SortBy = "RELEVANCE"
	}
	if len(intent.Fields) == 0 {
		intent.Fields = query.SummaryFields
	}
	params := s.translator.BuildParams(intent)

	limit := args.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	res, err := s.paginator.FetchAll(ctx, params, pagination.FetchOptions{
		MaxResults: limit,
		PageSize:   min(pagination.DefaultPageSize, limit),
		CountTotal: true,
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]TrialSummary, 0, len(res.Studies))
	for _, study := range res.Studies {
		summaries = append(summaries, Summarize(study))
	}

	s.logger.Debug().
		Int("returned", len(summaries)).
		Int("limit", limit).
		Dur("duration", time.Since(start)).
		Msg("search completed")

	return &SearchResult{
		Studies:       summaries,
		TotalCount:    res.TotalCount,
		ReturnedCount: len(summaries),
		QueryUsed:     queryUsed(params),
		Params:        params,
		ElapsedMs:     time.Since(start).Milliseconds(),
	}, nil
}

func queryUsed(params map[string]string) string {
	for _, key := range []string{query.ParamAdvanced, query.ParamTerm, query.ParamCondition} {
		if v := params[key]; v != "" {
			return v
		}
	}
	return ""
}

// TrialDetail is one successfully fetched study.
type TrialDetail struct {
	TrialSummary
	Study client.Study `json:"study"`
}

// TrialError describes one failed lookup.
type TrialError struct {
	NCTID   string `json:"nct_id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// DetailsResult is the output of TrialDetails.
type DetailsResult struct {
	Trials []TrialDetail `json:"trials"`
	Errors []TrialError  `json:"errors,omitempty"`
	Depth  Depth         `json:"analysis_depth"`
}

// TrialDetails fetches one or more studies concurrently. Identifiers are
// trimmed, upper-cased and de-duplicated. Individual failures are listed in
// the result; the error is non-nil when nothing could be fetched.
func (s *Service) TrialDetails(ctx context.Context, ids []string, depth Depth) (*DetailsResult, error) {
	var normalized []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		normalized = append(normalized, id)
	}
	if len(normalized) == 0 {
		return nil, &client.APIError{
			ErrorClass: client.ErrorClassValidation,
			Endpoint:   client.PathStudies,
			Message:    "at least one NCT identifier is required",
		}
	}

	results, err := s.batch.FetchStudies(ctx, normalized, depth.fields())
	if err != nil {
		return nil, err
	}

	out := &DetailsResult{Trials: []TrialDetail{}, Depth: depth}
	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}
			out.Errors = append(out.Errors, TrialError{
				NCTID:   r.NCTID,
				Kind:    errorKind(r.Err),
				Message: r.Err.Error(),
			})
			continue
		}
		out.Trials = append(out.Trials, TrialDetail{TrialSummary: Summarize(r.Study), Study: r.Study})
	}

	if len(out.Trials) == 0 {
		return out, firstErr
	}
	return out, nil
}

// SchemaOptions filter the FIELDS section of MetadataSchema.
type SchemaOptions struct {
	// FilterByArea keeps fields whose piece name contains this text
	FilterByArea string
	// SearchableOnly drops fields that cannot be queried
	SearchableOnly bool
}

// FieldInfo describes one study field.
type FieldInfo struct {
	Name        string `json:"field_name"`
	Piece       string `json:"piece_name"`
	Type        string `json:"data_type"`
	Searchable  bool   `json:"searchable"`
	Description string `json:"description,omitempty"`
}

// SearchAreaInfo describes one search area.
type SearchAreaInfo struct {
	Name    string   `json:"area_name"`
	UILabel string   `json:"ui_label,omitempty"`
	Param   string   `json:"param_name,omitempty"`
	Parts   []string `json:"parts"`
}

// EnumInfo describes one enumeration.
type EnumInfo struct {
	Name   string `json:"enum_name"`
	Values []any  `json:"possible_values"`
}

// Schema is the output of MetadataSchema.
type Schema struct {
	Scope       Scope            `json:"scope"`
	Fields      []FieldInfo      `json:"fields_schema,omitempty"`
	TotalFields int              `json:"total_fields,omitempty"`
	SearchAreas []SearchAreaInfo `json:"search_areas,omitempty"`
	Enums       []EnumInfo       `json:"enum_definitions,omitempty"`
	Statistics  map[string]any   `json:"statistics,omitempty"`
	APIVersion  string           `json:"api_version,omitempty"`
}

// MetadataSchema describes the registry's data model for the requested
// scope. Statistics and version failures are reported inline instead of
// failing the call.
func (s *Service) MetadataSchema(ctx context.Context, scope Scope, opts SchemaOptions) (*Schema, error) {
	out := &Schema{Scope: scope}

	if scope.includes(ScopeFields) {
		body, err := s.client.Metadata(ctx)
		if err != nil {
			return nil, err
		}
		out.Fields = []FieldInfo{}
		for _, item := range cast.ToSlice(body["fields"]) {
			f := cast.ToStringMap(item)
			info := FieldInfo{
				Name:        cast.ToString(f["name"]),
				Piece:       cast.ToString(f["piece"]),
				Type:        cast.ToString(f["type"]),
				Searchable:  cast.ToBool(f["searchable"]),
				Description: cast.ToString(f["description"]),
			}
			if opts.FilterByArea != "" && !strings.Contains(strings.ToLower(info.Piece), strings.ToLower(opts.FilterByArea)) {
				continue
			}
			if opts.SearchableOnly && !info.Searchable {
				continue
			}
			out.Fields = append(out.Fields, info)
		}
		out.TotalFields = len(out.Fields)
	}

	if scope.includes(ScopeSearchAreas) {
		body, err := s.client.SearchAreas(ctx)
		if err != nil {
			return nil, err
		}
		out.SearchAreas = []SearchAreaInfo{}
		for _, item := range cast.ToSlice(body["searchAreas"]) {
			a := cast.ToStringMap(item)
			info := SearchAreaInfo{
				Name:    cast.ToString(a["name"]),
				UILabel: cast.ToString(a["uiLabel"]),
				Param:   cast.ToString(a["param"]),
				Parts:   []string{},
			}
			for _, p := range cast.ToSlice(a["parts"]) {
				info.Parts = append(info.Parts, cast.ToString(cast.ToStringMap(p)["name"]))
			}
			out.SearchAreas = append(out.SearchAreas, info)
		}
	}

	if scope.includes(ScopeEnums) {
		body, err := s.client.Enums(ctx)
		if err != nil {
			return nil, err
		}
		out.Enums = []EnumInfo{}
		for _, item := range cast.ToSlice(body["enums"]) {
			e := cast.ToStringMap(item)
			name := cast.ToString(e["type"])
			if name == "" {
				name = cast.ToString(e["name"])
			}
			out.Enums = append(out.Enums, EnumInfo{Name: name, Values: cast.ToSlice(e["values"])})
		}
	}

	if scope.includes(ScopeStatistics) {
		stats, err := s.client.SizeStats(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("statistics unavailable")
			out.Statistics = map[string]any{"error": "could not fetch statistics"}
		} else {
			body := cast.ToStringMap(stats)
			out.Statistics = map[string]any{
				"total_studies": cast.ToInt(body["totalStudies"]),
				"average_size":  body["averageSizeBytes"],
			}
		}
	}

	if version, err := s.client.Version(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("version unavailable")
	} else {
		out.APIVersion = cast.ToString(version["apiVersion"])
	}

	return out, nil
}

// TranslateResult is the output of Translate.
type TranslateResult struct {
	Input      string            `json:"input"`
	Expression string            `json:"expression"`
	Scoped     bool              `json:"scoped"`
	Params     map[string]string `json:"params"`
}

// Translate converts free text into a field-scoped expression and the
// parameters a search with that text would send.
func (s *Service) Translate(text string) TranslateResult {
	expr := s.translator.Translate(text)
	return TranslateResult{
		Input:      text,
		Expression: expr,
		Scoped:     query.IsScoped(expr),
		Params:     s.translator.BuildParams(query.SearchIntent{Query: text}),
	}
}

// Marshal renders v as indented JSON for tool output.
func Marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(data), nil
}
