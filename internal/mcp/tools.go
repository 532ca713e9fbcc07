package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolServer exposes the bridge's context store and token estimator as MCP tools
type ToolServer struct {
	server *mcp.Server
	client *Client
	caller string // user id the bridge checks when contexts are changed
}

// NewToolServer creates the MCP server and registers its tools. caller is
// sent with every mutation and must be privileged unless the bridge runs in
// open permission mode.
func NewToolServer(client *Client, caller, version string) *ToolServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "feishu-gpt-contexts",
		Version: version,
	}, nil)

	s := &ToolServer{server: server, client: client, caller: caller}
	s.registerTools()
	return s
}

// Server returns the underlying MCP server
func (s *ToolServer) Server() *mcp.Server {
	return s.server
}

// Run serves the tools over stdin/stdout until the client disconnects or ctx is done
func (s *ToolServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *ToolServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_contexts",
		Description: "List the named contexts users can inject into a prompt with !<name>.",
	}, s.handleListContexts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "set_context",
		Description: "Create or replace a named context. Names are case-insensitive and may not collide with directive keywords.",
	}, s.handleSetContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "unset_context",
		Description: "Delete a named context. Deleting a missing context succeeds.",
	}, s.handleUnsetContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "estimate_tokens",
		Description: "Count the prompt tokens a list of messages costs for a model and compare it with the model's budget.",
	}, s.handleEstimateTokens)
}

// ListContextsInput is empty - no input needed
type ListContextsInput struct{}

// ListContextsOutput contains the stored contexts
type ListContextsOutput struct {
	Contexts []Context `json:"contexts"`
	Error    string    `json:"error,omitempty"`
}

// SetContextInput is the input for set_context tool
type SetContextInput struct {
	Name  string `json:"name" jsonschema:"the context name, used in chat as !name"`
	Value string `json:"value" jsonschema:"the system instruction injected when the context is used"`
}

// SetContextOutput is the output for set_context tool
type SetContextOutput struct {
	Success bool   `json:"success"`
	Name    string `json:"name,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UnsetContextInput is the input for unset_context tool
type UnsetContextInput struct {
	Name string `json:"name" jsonschema:"the context name to delete"`
}

// UnsetContextOutput is the output for unset_context tool
type UnsetContextOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// EstimateTokensInput is the input for estimate_tokens tool
type EstimateTokensInput struct {
	Model    string  `json:"model,omitempty" jsonschema:"model name or family, the bridge default when empty"`
	Messages []Entry `json:"messages" jsonschema:"the prompt messages in order"`
}

// EstimateTokensOutput is the output for estimate_tokens tool
type EstimateTokensOutput struct {
	Model  string `json:"model,omitempty"`
	Tokens int    `json:"tokens"`
	Budget int    `json:"budget"`
	Fits   bool   `json:"fits"`
	Error  string `json:"error,omitempty"`
}
