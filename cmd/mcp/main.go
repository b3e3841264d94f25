package main

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/study-assistant/internal/adapters/mcp"
	"github.com/kirillkom/study-assistant/internal/bootstrap"
	"github.com/kirillkom/study-assistant/internal/config"
	"github.com/kirillkom/study-assistant/internal/observability/logging"
)

const serviceName = "study-mcp"

func main() {
	// stdout carries the MCP protocol; logs go to stderr.
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger(os.Stderr, serviceName, "error", "json").Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(os.Stderr, serviceName, cfg.LogLevel, cfg.LogFormat)

	files, closeFiles, err := bootstrap.NewFileReader(context.Background(), cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer closeFiles()

	s := mcpadapter.NewServer(serviceName, "1.0.0", mcpadapter.NewTools(files, logger))
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp_server_error", "error", err)
		os.Exit(1)
	}
}
