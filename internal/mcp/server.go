package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	slogctx "github.com/veqryn/slog-context"

	"github.com/Aman-CERP/settingsearch/internal/aggregate"
	"github.com/Aman-CERP/settingsearch/internal/async"
	"github.com/Aman-CERP/settingsearch/internal/index"
	"github.com/Aman-CERP/settingsearch/internal/telemetry"
	"github.com/Aman-CERP/settingsearch/pkg/version"
)

// ServerName is the implementation name announced to clients.
const ServerName = "settingsearch"

// Limits applied to tool inputs.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	DefaultRecentLimit = 5
	MaxRecentLimit     = 64
)

// Service is the query and indexing surface the server exposes.
type Service interface {
	Search(ctx context.Context, query string) (*aggregate.Response, error)
	RecordQuery(ctx context.Context, query string) error
	ClearHistory(ctx context.Context) error
	RecentQueries(ctx context.Context, limit int) ([]string, error)
	Reindex(ctx context.Context, req index.PassRequest) (*index.PassResult, error)
	Status() async.ProgressSnapshot
}

var _ Service = (*async.Service)(nil)

// PassRequestFunc builds the request of a reindex tool call.
type PassRequestFunc func(full bool) index.PassRequest

// Server is the MCP server for settingsearch.
type Server struct {
	mcp         *mcp.Server
	service     Service
	passRequest PassRequestFunc
	searchLimit int
	metrics     *telemetry.QueryMetrics
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        ToolSearchSettings,
		Description: "Search device settings by name, summary or keyword. Returns matching settings best first, with the screen path and the intent that opens each one. Queries issued while the index is rebuilding are answered once it is ready.",
	},
	{
		Name:        ToolRecentQueries,
		Description: "List the most recently submitted settings queries, newest first.",
	},
	{
		Name:        ToolRecordQuery,
		Description: "Save a submitted query to the recent queries list.",
	},
	{
		Name:        ToolClearHistory,
		Description: "Delete every saved query.",
	},
	{
		Name:        ToolReindex,
		Description: "Rebuild the settings index. Skips the rebuild when locale and build are unchanged unless full is set.",
	},
	{
		Name:        ToolIndexStatus,
		Description: "Report whether the index is ready, the state of the running pass and the outcome of the last one.",
	},
}

// NewServer creates a new MCP server. passRequest may be nil when the
// service should reindex with an empty request.
func NewServer(service Service, passRequest PassRequestFunc, searchLimit int) (*Server, error) {
	if service == nil {
		return nil, errors.New("settings service is required")
	}
	if passRequest == nil {
		passRequest = func(full bool) index.PassRequest {
			return index.PassRequest{ForceFull: full}
		}
	}
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}

	s := &Server{
		service:     service,
		passRequest: passRequest,
		searchLimit: clampLimit(searchLimit, DefaultSearchLimit, 1, MaxSearchLimit),
		metrics:     telemetry.New(telemetry.DefaultConfig()),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with the given arguments and returns
// its structured output.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolSearchSettings:
		query, _ := args["query"].(string)
		in := SearchSettingsInput{Query: query}
		if l, ok := args["limit"].(float64); ok {
			in.Limit = int(l)
		}
		return s.searchSettings(ctx, in)
	case ToolRecentQueries:
		var in RecentQueriesInput
		if l, ok := args["limit"].(float64); ok {
			in.Limit = int(l)
		}
		return s.recentQueries(ctx, in)
	case ToolRecordQuery:
		query, _ := args["query"].(string)
		return s.recordQuery(ctx, RecordQueryInput{Query: query})
	case ToolClearHistory:
		return s.clearHistory(ctx)
	case ToolReindex:
		full, _ := args["full"].(bool)
		return s.reindex(ctx, ReindexInput{Full: full})
	case ToolIndexStatus:
		return s.indexStatus(), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) searchSettings(ctx context.Context, in SearchSettingsInput) (SearchSettingsOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return SearchSettingsOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	limit := clampLimit(in.Limit, s.searchLimit, 1, MaxSearchLimit)

	start := time.Now()
	ctx = slogctx.Append(ctx, "request_id", uuid.NewString())
	slogctx.Info(ctx, "tool_search_started",
		slog.String("query", query),
		slog.Int("limit", limit))

	resp, err := s.service.Search(ctx, query)
	if err != nil {
		slogctx.Error(ctx, "tool_search_failed",
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return SearchSettingsOutput{}, MapError(err)
	}

	results := resp.Results
	if len(results) > limit {
		results = results[:limit]
	}
	out := SearchSettingsOutput{
		Query:   resp.Query,
		Ranking: resp.Ranking.String(),
		Results: make([]SettingResultOutput, 0, len(results)),
		Sources: resp.Sources,
	}
	for _, r := range results {
		out.Results = append(out.Results, ToSettingResultOutput(r))
	}
	s.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		ResultCount: len(resp.Results),
		Latency:     time.Since(start),
		Ranking:     out.Ranking,
		Degraded:    degradedSources(resp.Sources),
	})

	slogctx.Info(ctx, "tool_search_completed",
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(out.Results)))
	return out, nil
}

// degradedSources returns the sources that did not finish, sorted.
func degradedSources(sources map[string]aggregate.TaskState) []string {
	var out []string
	for name, state := range sources {
		if state != aggregate.TaskDone {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Server) indexStatus() IndexStatusOutput {
	out := ToIndexStatusOutput(s.service.Status())
	snap := s.metrics.Snapshot()
	out.Queries = &snap
	return out
}

func (s *Server) recentQueries(ctx context.Context, in RecentQueriesInput) (RecentQueriesOutput, error) {
	limit := clampLimit(in.Limit, DefaultRecentLimit, 1, MaxRecentLimit)
	queries, err := s.service.RecentQueries(ctx, limit)
	if err != nil {
		return RecentQueriesOutput{}, MapError(err)
	}
	if queries == nil {
		queries = []string{}
	}
	return RecentQueriesOutput{Queries: queries}, nil
}

func (s *Server) recordQuery(ctx context.Context, in RecordQueryInput) (AckOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return AckOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	if err := s.service.RecordQuery(ctx, in.Query); err != nil {
		return AckOutput{}, MapError(err)
	}
	return AckOutput{OK: true}, nil
}

func (s *Server) clearHistory(ctx context.Context) (AckOutput, error) {
	if err := s.service.ClearHistory(ctx); err != nil {
		return AckOutput{}, MapError(err)
	}
	return AckOutput{OK: true}, nil
}

func (s *Server) reindex(ctx context.Context, in ReindexInput) (ReindexOutput, error) {
	req := s.passRequest(in.Full)
	slogctx.Info(ctx, "tool_reindex_started",
		slog.String("locale", req.Locale),
		slog.Bool("full", req.ForceFull))

	res, err := s.service.Reindex(ctx, req)
	if err != nil {
		slogctx.Warn(ctx, "tool_reindex_failed", slog.String("error", err.Error()))
		return ReindexOutput{}, MapError(err)
	}
	return ToReindexOutput(res), nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSearchSettings,
		Description: describe(ToolSearchSettings),
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolRecentQueries,
		Description: describe(ToolRecentQueries),
	}, s.mcpRecentQueriesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolRecordQuery,
		Description: describe(ToolRecordQuery),
	}, s.mcpRecordQueryHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolClearHistory,
		Description: describe(ToolClearHistory),
	}, s.mcpClearHistoryHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolReindex,
		Description: describe(ToolReindex),
	}, s.mcpReindexHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolIndexStatus,
		Description: describe(ToolIndexStatus),
	}, s.mcpIndexStatusHandler)

	slog.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func describe(name string) string {
	for _, t := range tools {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchSettingsInput) (
	*mcp.CallToolResult,
	SearchSettingsOutput,
	error,
) {
	out, err := s.searchSettings(ctx, input)
	if err != nil {
		return nil, SearchSettingsOutput{}, err
	}
	return textResult(FormatSearchResults(out.Query, out.Results)), out, nil
}

func (s *Server) mcpRecentQueriesHandler(ctx context.Context, _ *mcp.CallToolRequest, input RecentQueriesInput) (
	*mcp.CallToolResult,
	RecentQueriesOutput,
	error,
) {
	out, err := s.recentQueries(ctx, input)
	if err != nil {
		return nil, RecentQueriesOutput{}, err
	}
	return textResult(FormatRecentQueries(out.Queries)), out, nil
}

func (s *Server) mcpRecordQueryHandler(ctx context.Context, _ *mcp.CallToolRequest, input RecordQueryInput) (
	*mcp.CallToolResult,
	AckOutput,
	error,
) {
	out, err := s.recordQuery(ctx, input)
	if err != nil {
		return nil, AckOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpClearHistoryHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ClearHistoryInput) (
	*mcp.CallToolResult,
	AckOutput,
	error,
) {
	out, err := s.clearHistory(ctx)
	if err != nil {
		return nil, AckOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpReindexHandler(ctx context.Context, _ *mcp.CallToolRequest, input ReindexInput) (
	*mcp.CallToolResult,
	ReindexOutput,
	error,
) {
	out, err := s.reindex(ctx, input)
	if err != nil {
		return nil, ReindexOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpIndexStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	return nil, s.indexStatus(), nil
}

// Serve runs the server on stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	slogctx.Info(ctx, "mcp_server_starting", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		slogctx.Error(ctx, "mcp_server_stopped", slog.String("error", err.Error()))
		return fmt.Errorf("mcp server: %w", err)
	}
	slogctx.Info(ctx, "mcp_server_stopped")
	return nil
}
