// Command context-mcp serves the bridge's context store as MCP tools over
// stdio, relaying every call to the bridge's loopback HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/feishu-gpt-bridge/internal/conf"
	"github.com/DevRickLin/feishu-gpt-bridge/internal/mcp"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	// stdout carries the protocol, logs go to stderr
	logger := conf.NewLogger(conf.LogConfig{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	}, os.Stderr)

	baseURL := os.Getenv("BRIDGE_API_URL")
	if baseURL == "" {
		port := os.Getenv("API_PORT")
		if port == "" {
			port = "8080"
		}
		baseURL = fmt.Sprintf("http://127.0.0.1:%s", port)
	}
	caller := os.Getenv("CONTEXT_CALLER_ID")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tools := mcp.NewToolServer(mcp.NewClient(baseURL), caller, version)
	logger.Info("serving context tools", "bridge", baseURL, "caller", caller)
	if err := tools.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
