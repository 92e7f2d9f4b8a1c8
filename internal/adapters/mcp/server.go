package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/evidence-retrieval/internal/config"
	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
	"github.com/kirillkom/evidence-retrieval/internal/core/ports"
)

const (
	serverName     = "evidence-retrieval"
	serverVersion  = "1.0.0"
	searchToolName = "search_evidence"
)

// Server exposes evidence search as an MCP tool.
type Server struct {
	cfg      config.Config
	searcher ports.EvidenceSearcher
	mcp      *server.MCPServer
}

func NewServer(cfg config.Config, searcher ports.EvidenceSearcher) *Server {
	s := &Server{
		cfg:      cfg,
		searcher: searcher,
		mcp:      server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.mcp.AddTool(searchTool(), s.handleSearch)
	return s
}

// HTTPHandler serves the streamable HTTP transport at endpointPath.
func (s *Server) HTTPHandler(endpointPath string) http.Handler {
	return server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath(endpointPath),
		server.WithStateLess(true),
	)
}

func searchTool() mcp.Tool {
	return mcp.NewTool(searchToolName,
		mcp.WithDescription("Hybrid keyword and semantic search over case evidence. Returns passages ranked by fused relevance with per-channel diagnostics."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language or keyword query.")),
		mcp.WithString("case_id", mcp.Description("Restrict results to one case.")),
		mcp.WithArray("kinds",
			mcp.Description("Restrict results to evidence kinds: document, transcript, communication."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("document_ids",
			mcp.Description("Restrict results to these documents."),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of results.")),
		mcp.WithNumber("score_threshold", mcp.Description("Minimum final score within [0,1].")),
	)
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := s.cfg.NewSearchRequest(query)
	req.TopK = request.GetInt("top_k", req.TopK)
	req.ScoreThreshold = request.GetFloat("score_threshold", req.ScoreThreshold)
	req.Filter.CaseID = request.GetString("case_id", "")
	req.Filter.DocumentIDs = request.GetStringSlice("document_ids", nil)
	for _, kind := range request.GetStringSlice("kinds", nil) {
		req.Filter.Kinds = append(req.Filter.Kinds, domain.EvidenceKind(kind))
	}

	resp, err := s.searcher.Search(ctx, req)
	if err != nil {
		slog.Warn("mcp_search_failed", "tool", searchToolName, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal search response: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
