package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"impar/api/internal/retrieval"
)

const (
	ServerName = "impar"
	Version    = "0.1.0"
)

type Retriever interface {
	SearchDocuments(ctx context.Context, query string, k int, fileName string) (string, error)
}

type SourceLister interface {
	ListSources(ctx context.Context) ([]string, error)
}

// Server exposes the knowledge base to agents as MCP tools.
type Server struct {
	retriever Retriever
	sources   SourceLister
	server    *mcp.Server
	logger    *slog.Logger
}

func NewServer(r Retriever, s SourceLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		retriever: r,
		sources:   s,
		server:    mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: Version}, nil),
		logger:    logger,
	}
	srv.registerTools()
	return srv
}

// Handler serves the MCP streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

type SearchInput struct {
	Query    string `json:"query" jsonschema:"what to look for in the documents"`
	FileName string `json:"file_name,omitempty" jsonschema:"restrict the search to one source, e.g. report.pdf or a scraped URL"`
	K        int    `json:"k,omitempty" jsonschema:"number of chunks to return (default 4)"`
}

type SearchOutput struct {
	Text string `json:"text"`
}

type ListSourcesInput struct{}

type ListSourcesOutput struct {
	Sources []string `json:"sources"`
	Count   int      `json:"count"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "search_documents",
		Description: "Search the uploaded documents and scraped pages for passages relevant to a question. " +
			"Use file_name to restrict the search to a single source.",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_sources",
		Description: "List every document and page stored in the knowledge base",
	}, s.handleListSources)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	k := input.K
	if k <= 0 {
		k = retrieval.DefaultK
	}

	text, err := s.retriever.SearchDocuments(ctx, input.Query, k, input.FileName)
	if err != nil {
		s.logger.ErrorContext(ctx, "search_documents failed", "error", err)
		return nil, SearchOutput{}, err
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, SearchOutput{Text: text}, nil
}

func (s *Server) handleListSources(ctx context.Context, _ *mcp.CallToolRequest, _ ListSourcesInput) (*mcp.CallToolResult, ListSourcesOutput, error) {
	sources, err := s.sources.ListSources(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list_sources failed", "error", err)
		return nil, ListSourcesOutput{}, err
	}
	if sources == nil {
		sources = []string{}
	}
	return nil, ListSourcesOutput{Sources: sources, Count: len(sources)}, nil
}
