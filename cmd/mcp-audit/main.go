// Command mcp-audit runs the MCP tool server for table audits.
// Uses stdio transport for integration with AI assistants.
package main

import (
	"context"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.temporal.io/sdk/client"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/mcpserver"
	"github.com/gdw-platform/gdw-audit/internal/observability"
	"github.com/gdw-platform/gdw-audit/internal/temporal/codecs"
	"github.com/gdw-platform/gdw-audit/internal/temporal/querier"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := observability.InitLoggerTo(os.Stderr, cfg.LogLevel)

	reg, err := config.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		log.Fatalf("registry: %v", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:      cfg.TemporalHostPort,
		Namespace:     cfg.TemporalNamespace,
		Logger:        observability.NewTemporalSlogAdapter(logger),
		DataConverter: codecs.NewDataConverter(),
	})
	if err != nil {
		log.Fatalf("unable to create Temporal client: %v", err)
	}
	defer c.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "gdw-audit",
		Version: "v1.0.0",
	}, nil)
	mcpserver.RegisterTools(server, querier.New(c), reg)

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
