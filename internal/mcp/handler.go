package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool handlers report bridge failures in the output's Error field so the
// model sees the reason; the returned error is reserved for protocol faults.

func (s *ToolServer) handleListContexts(ctx context.Context, req *mcp.CallToolRequest, input ListContextsInput) (*mcp.CallToolResult, ListContextsOutput, error) {
	contexts, err := s.client.ListContexts(ctx)
	if err != nil {
		return nil, ListContextsOutput{Contexts: []Context{}, Error: err.Error()}, nil
	}
	if contexts == nil {
		contexts = []Context{}
	}
	return nil, ListContextsOutput{Contexts: contexts}, nil
}

func (s *ToolServer) handleSetContext(ctx context.Context, req *mcp.CallToolRequest, input SetContextInput) (*mcp.CallToolResult, SetContextOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, SetContextOutput{Error: "name is required"}, nil
	}

	saved, err := s.client.SetContext(ctx, s.caller, name, input.Value)
	if err != nil {
		return nil, SetContextOutput{Error: err.Error()}, nil
	}
	return nil, SetContextOutput{Success: true, Name: saved.Name}, nil
}

func (s *ToolServer) handleUnsetContext(ctx context.Context, req *mcp.CallToolRequest, input UnsetContextInput) (*mcp.CallToolResult, UnsetContextOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, UnsetContextOutput{Error: "name is required"}, nil
	}

	if err := s.client.UnsetContext(ctx, s.caller, name); err != nil {
		return nil, UnsetContextOutput{Error: err.Error()}, nil
	}
	return nil, UnsetContextOutput{Success: true}, nil
}

func (s *ToolServer) handleEstimateTokens(ctx context.Context, req *mcp.CallToolRequest, input EstimateTokensInput) (*mcp.CallToolResult, EstimateTokensOutput, error) {
	est, err := s.client.Estimate(ctx, input.Model, input.Messages)
	if err != nil {
		return nil, EstimateTokensOutput{Error: err.Error()}, nil
	}
	return nil, EstimateTokensOutput{
		Model:  est.Model,
		Tokens: est.Tokens,
		Budget: est.Budget,
		Fits:   est.Fits,
	}, nil
}
