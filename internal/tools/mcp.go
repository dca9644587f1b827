package tools

import (
	"context"
	"errors"

	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/Sternrassler/ctgov-client/pkg/query"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"
)

// Tool names.
const (
	ToolSearch    = "search_clinical_trials"
	ToolDetails   = "get_trial_details"
	ToolSchema    = "get_trial_metadata_schema"
	ToolTranslate = "translate_query"
)

// NewServer creates an MCP server with every tool registered.
func NewServer(svc *Service) *server.MCPServer {
	srv := server.NewMCPServer("ctgov-mcp", client.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	Register(srv, svc)
	return srv
}

// Register adds the trial tools to srv.
func Register(srv *server.MCPServer, svc *Service) {
	h := &handlers{svc: svc}

	srv.AddTool(mcp.NewTool(ToolSearch,
		mcp.WithDescription("Search ClinicalTrials.gov with natural language and structured filters. "+
			`Free text such as "lung cancer AND pembrolizumab in phase 3" is translated to AREA[] syntax.`),
		mcp.WithString("query", mcp.Description("Natural language or AREA[] query")),
		mcp.WithString("condition", mcp.Description("Disease or condition")),
		mcp.WithString("intervention_name", mcp.Description("Intervention name")),
		mcp.WithString("intervention_type", mcp.Description("DRUG, DEVICE, BIOLOGICAL, PROCEDURE, ...")),
		mcp.WithArray("phases", mcp.Description("Phases, e.g. PHASE2 or \"phase 3\""), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("statuses", mcp.Description("Overall statuses, e.g. RECRUITING"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("study_type", mcp.Enum("INTERVENTIONAL", "OBSERVATIONAL", "EXPANDED_ACCESS")),
		mcp.WithString("country", mcp.Description("Location country")),
		mcp.WithString("state", mcp.Description("Location state or province")),
		mcp.WithString("city", mcp.Description("Location city")),
		mcp.WithNumber("latitude", mcp.Description("Latitude for proximity search")),
		mcp.WithNumber("longitude", mcp.Description("Longitude for proximity search")),
		mcp.WithNumber("radius_km", mcp.Description("Proximity radius in km (default 50)")),
		mcp.WithString("min_age", mcp.Description(`Minimum eligible age, e.g. "18 years"`)),
		mcp.WithString("max_age", mcp.Description(`Maximum eligible age, e.g. "65 years"`)),
		mcp.WithString("sex", mcp.Enum("MALE", "FEMALE", "ALL")),
		mcp.WithBoolean("healthy_volunteers", mcp.Description("Accepts healthy volunteers")),
		mcp.WithString("sponsor", mcp.Description("Sponsor or organization")),
		mcp.WithBoolean("has_results", mcp.Description("Has posted results")),
		mcp.WithString("sort_by", mcp.Enum("RELEVANCE", "ENROLLMENT_COUNT", "LAST_UPDATE", "COMPLETION_DATE", "START_DATE")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 50, max 1000)")),
		mcp.WithArray("fields", mcp.Description("Fields to retrieve"), mcp.Items(map[string]any{"type": "string"})),
	), h.search)

	srv.AddTool(mcp.NewTool(ToolDetails,
		mcp.WithDescription("Fetch one or more trials by NCT identifier."),
		mcp.WithString("nct_id", mcp.Description("Single NCT identifier, e.g. NCT04123456")),
		mcp.WithArray("nct_ids", mcp.Description("Several NCT identifiers"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("depth", mcp.Enum(string(DepthSummary), string(DepthStandard), string(DepthComprehensive))),
	), h.details)

	srv.AddTool(mcp.NewTool(ToolSchema,
		mcp.WithDescription("Describe the registry data model: fields, search areas, enums and statistics."),
		mcp.WithString("scope", mcp.Enum(string(ScopeFields), string(ScopeSearchAreas), string(ScopeEnums), string(ScopeStatistics), string(ScopeAll))),
		mcp.WithString("filter_by_area", mcp.Description("Keep fields of this module, e.g. ConditionsModule")),
		mcp.WithBoolean("searchable_only", mcp.Description("Only fields that can be queried")),
	), h.schema)

	srv.AddTool(mcp.NewTool(ToolTranslate,
		mcp.WithDescription("Translate a natural language query to AREA[] syntax without searching."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Query text")),
	), h.translate)
}

type handlers struct {
	svc *Service
}

func (h *handlers) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	intent := query.SearchIntent{
		Query:             cast.ToString(args["query"]),
		Condition:         cast.ToString(args["condition"]),
		InterventionName:  cast.ToString(args["intervention_name"]),
		InterventionType:  cast.ToString(args["intervention_type"]),
		Phases:            cast.ToStringSlice(args["phases"]),
		Statuses:          cast.ToStringSlice(args["statuses"]),
		StudyType:         cast.ToString(args["study_type"]),
		MinAge:            cast.ToString(args["min_age"]),
		MaxAge:            cast.ToString(args["max_age"]),
		Sex:               cast.ToString(args["sex"]),
		HealthyVolunteers: optionalBool(args, "healthy_volunteers"),
		Sponsor:           cast.ToString(args["sponsor"]),
		HasResults:        optionalBool(args, "has_results"),
		SortBy:            cast.ToString(args["sort_by"]),
		Fields:            cast.ToStringSlice(args["fields"]),
	}

	loc := query.Location{
		City:      cast.ToString(args["city"]),
		State:     cast.ToString(args["state"]),
		Country:   cast.ToString(args["country"]),
		Latitude:  optionalFloat(args, "latitude"),
		Longitude: optionalFloat(args, "longitude"),
		RadiusKm:  cast.ToFloat64(args["radius_km"]),
	}
	if loc != (query.Location{}) {
		intent.Location = &loc
	}

	res, err := h.svc.SearchTrials(ctx, SearchArgs{SearchIntent: intent, Limit: cast.ToInt(args["limit"])})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (h *handlers) details(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	var ids []string
	if id := cast.ToString(args["nct_id"]); id != "" {
		ids = append(ids, id)
	}
	ids = append(ids, cast.ToStringSlice(args["nct_ids"])...)

	res, err := h.svc.TrialDetails(ctx, ids, ParseDepth(cast.ToString(args["depth"])))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (h *handlers) schema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	res, err := h.svc.MetadataSchema(ctx, ParseScope(cast.ToString(args["scope"])), SchemaOptions{
		FilterByArea:   cast.ToString(args["filter_by_area"]),
		SearchableOnly: cast.ToBool(args["searchable_only"]),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res)
}

func (h *handlers) translate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := cast.ToString(req.GetArguments()["text"])
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	return jsonResult(h.svc.Translate(text))
}

func optionalBool(args map[string]any, key string) *bool {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	b := cast.ToBool(v)
	return &b
}

func optionalFloat(args map[string]any, key string) *float64 {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil
	}
	return &f
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	text, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(text), nil
}

// errorResult converts a failure into a tool error with a remediation hint.
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error() + "\n\nHint: " + hint(err))
}

func hint(err error) string {
	switch {
	case errors.Is(err, client.ErrValidation):
		return "the query was rejected. Check AREA[] syntax and phase, status and enum values."
	case errors.Is(err, client.ErrNotFound):
		return "no such trial. NCT identifiers look like NCT04123456."
	case errors.Is(err, client.ErrRateLimited):
		return "the registry is rate limiting requests. Wait a minute before retrying."
	case errors.Is(err, client.ErrForbidden):
		return "access was denied by the registry."
	case errors.Is(err, client.ErrContextCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "the request was cancelled or timed out. Narrow the search or lower the limit."
	default:
		return "the registry could not be reached. This is usually transient, retry later."
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, client.ErrValidation):
		return "validation"
	case errors.Is(err, client.ErrNotFound):
		return "not_found"
	case errors.Is(err, client.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, client.ErrForbidden):
		return "forbidden"
	case errors.Is(err, client.ErrContextCancelled):
		return "cancelled"
	default:
		return "transport"
	}
}
