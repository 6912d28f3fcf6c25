// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Laguz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/laguz/internal/api"
	"github.com/starford/laguz/internal/apperr"
)

// Server wraps the MCP server with Laguz tools.
type Server struct {
	mcp *server.MCPServer
	svc *api.Service
}

// New creates a new MCP server with all Laguz tools registered.
func New(svc *api.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Laguz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_nodes",
		mcp.WithDescription("Full-text search through node content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNodes)

	s.mcp.AddTool(mcp.NewTool("read_node",
		mcp.WithDescription("Read a graph node: title, content, outgoing edges and backlinks."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Absolute path of the node (e.g. /vault/folder/note.md)")),
	), s.readNode)

	s.mcp.AddTool(mcp.NewTool("create_node",
		mcp.WithDescription("Create a new Markdown node at the specified path. "+
			"Content MUST follow the canonical node format (optional YAML frontmatter, "+
			"Markdown body with [[wikilinks]], optional _Links:_ section). Read the contract "+
			"first via the get_node_contract tool or the laguz://node-format resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Absolute path for the new node (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the Laguz node format contract")),
	), s.createNode)

	s.mcp.AddTool(mcp.NewTool("get_node_contract",
		mcp.WithDescription("Returns the canonical Laguz node format contract. "+
			"Call this before creating or updating nodes to ensure correct structure."),
	), s.getNodeContract)

	s.mcp.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("List all graph nodes with their outgoing edges."),
	), s.getGraph)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all nodes that link to the specified node."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Absolute path of the node to find backlinks for")),
	), s.getBacklinks)

	// Resource: node format contract.
	s.mcp.AddResource(
		mcp.NewResource("laguz://node-format", "Node Format Contract",
			mcp.WithResourceDescription("Canonical Markdown node format that all nodes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNodeFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	node, err := s.svc.GetNode(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(node, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	node, err := s.svc.CreateNode(ctx, id, []byte(content))
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError(fmt.Sprintf("node already exists: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", node.ID)), nil
}

func (s *Server) getGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view := s.svc.Graph(ctx)
	var sb strings.Builder
	for _, n := range view.Nodes {
		sb.WriteString(n.ID)
		if n.Title != "" {
			fmt.Fprintf(&sb, "  (%s)", n.Title)
		}
		sb.WriteByte('\n')
		for _, e := range n.Edges {
			fmt.Fprintf(&sb, "  -> %s", e.Target)
			if e.Label != "" {
				fmt.Fprintf(&sb, "  [%s]", e.Label)
			}
			sb.WriteByte('\n')
		}
	}
	if sb.Len() == 0 {
		return mcp.NewToolResultText("graph is empty"), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) getNodeContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NodeFormatContract), nil
}

func (s *Server) readNodeFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "laguz://node-format",
			MIMEType: "text/markdown",
			Text:     NodeFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}
