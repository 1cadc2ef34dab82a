// Package mcp exposes the pipeforge daemon over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/pipeforge/pkg/client"
	"github.com/rmax-ai/pipeforge/pkg/componentspec"
	"github.com/rmax-ai/pipeforge/pkg/duplicate"
)

// ComponentsURI is the resource listing cached components.
const ComponentsURI = "pipeforge://components"

// Server adapts pipeforge-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance talking to the daemon at apiURL.
func NewServer(apiURL, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"pipeforge",
			version,
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		ComponentsURI,
		"Cached Components",
		mcp.WithResourceDescription("Most recently used components in the pipeforge component cache"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadComponents)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"hydrate_component",
		mcp.WithDescription("Resolve a component reference (any of url, digest, text) into its full definition."),
		mcp.WithString("url", mcp.Description("Where the component text is published")),
		mcp.WithString("digest", mcp.Description("SHA-256 digest of the component text")),
		mcp.WithString("text", mcp.Description("Serialized component text")),
		mcp.WithString("name", mcp.Description("Display name to give the component")),
	), s.handleHydrate)

	s.mcpServer.AddTool(mcp.NewTool(
		"duplicate_nodes",
		mcp.WithDescription("Duplicate nodes of a graph component. Returns the updated component text and the id mapping."),
		mcp.WithString("component_text", mcp.Required(), mcp.Description("The graph component to edit")),
		mcp.WithString("node_ids", mcp.Required(), mcp.Description("Comma-separated node ids, e.g. 'task_train,input_dataset'")),
		mcp.WithString("connection", mcp.Description("Which links copies keep: none, internal, external or all (default)")),
		mcp.WithBoolean("selected", mcp.Description("Select the copies instead of the originals")),
	), s.handleDuplicate)

	s.mcpServer.AddTool(mcp.NewTool(
		"load_library",
		mcp.WithDescription("Load a component library and cache every component it lists."),
		mcp.WithString("url", mcp.Required(), mcp.Description("URL of the library document")),
	), s.handleLoadLibrary)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"pipeforge-aware",
		mcp.WithPromptDescription("Provides context about pipeforge concepts (components, references, graphs, duplication)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadComponents(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	records, err := s.apiClient.ListComponents(ctx, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch components: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal components: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleHydrate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := componentspec.ComponentReference{
		URL:    mcp.ParseString(request, "url", ""),
		Digest: mcp.ParseString(request, "digest", ""),
		Text:   mcp.ParseString(request, "text", ""),
		Name:   mcp.ParseString(request, "name", ""),
	}
	if ref.URL == "" && ref.Digest == "" && ref.Text == "" {
		return mcp.NewToolResultError("one of url, digest or text is required"), nil
	}

	hydrated, err := s.apiClient.Hydrate(ctx, ref)
	if err != nil {
		if errors.Is(err, client.ErrUnresolvable) {
			return mcp.NewToolResultError("The reference could not be resolved from the cache or the network."), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	resultMsg := fmt.Sprintf("Name: %s\nDigest: %s\nURL: %s\n\n%s", hydrated.Name, hydrated.Digest, hydrated.URL, hydrated.Text)
	return mcp.NewToolResultText(resultMsg), nil
}

func (s *Server) handleDuplicate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := mcp.ParseString(request, "component_text", "")
	ids := splitIDs(mcp.ParseString(request, "node_ids", ""))
	if text == "" || len(ids) == 0 {
		return mcp.NewToolResultError("component_text and node_ids are required"), nil
	}

	mode, err := duplicate.ParseMode(mcp.ParseString(request, "connection", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	nodes := make([]duplicate.Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, duplicate.Node{ID: id, Selected: true})
	}

	resp, err := s.apiClient.Duplicate(ctx, client.DuplicateRequest{
		ComponentText: text,
		Nodes:         nodes,
		Config: duplicate.Config{
			Selected:   mcp.ParseBoolean(request, "selected", false),
			Connection: mode,
		},
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString("Duplicated nodes:\n")
	for _, id := range ids {
		if newID, ok := resp.NodeIDMap[id]; ok {
			fmt.Fprintf(&b, "- %s -> %s\n", id, newID)
		}
	}
	b.WriteString("\nUpdated component:\n")
	b.WriteString(resp.ComponentText)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleLoadLibrary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := mcp.ParseString(request, "url", "")
	if url == "" {
		return mcp.NewToolResultError("url is required"), nil
	}

	report, err := s.apiClient.LoadLibrary(ctx, url)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	resultMsg := fmt.Sprintf("Library: %s\nSnapshot: %s\nResolved: %d\nUnresolved: %d",
		report.URL, report.SnapshotID, report.Resolved, report.Unresolved)
	return mcp.NewToolResultText(resultMsg), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "pipeforge-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are working with pipeforge, the core of a pipeline editor.

Concepts:
- Component: a reusable step, implemented by a container or by a graph of tasks.
- Component reference: points at a component by url, digest, text or parsed spec.
  Use 'hydrate_component' to turn any reference into the full component.
- Digest: SHA-256 of the component text. Equal text means the same component.
- Graph nodes: tasks (task_<id>), graph inputs (input_<name>), graph outputs
  (output_<name>) and notes (flex_<id>).
- Duplication: 'duplicate_nodes' copies nodes under fresh names. The connection
  mode decides which links the copies keep: none, internal (between copies),
  external (to nodes that were not copied) or all.

Always replace the whole component text with the text a tool returns.
`

	return mcp.NewGetPromptResult(
		"pipeforge-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
