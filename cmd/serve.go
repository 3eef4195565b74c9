package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/agentic-research/modgate/internal/config"
	"github.com/agentic-research/modgate/internal/gateway"
	"github.com/agentic-research/modgate/internal/logging"
)

func newServeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync_gateway tool over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			// logging and the cache size come from the startup directory;
			// every call re-reads the config of the directory it scans
			engine, log, _, err := o.engine(cmd, cwd)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			log.Info("serving MCP on stdio")
			return server.ServeStdio(newMCPServer(&gatewayTools{
				engine:     engine,
				loadConfig: o.config,
				log:        log,
			}))
		},
	}
}

// gatewayTools serializes tool calls so two syncs never race on one
// directory's gateway. All calls share the analysis cache of engine.
type gatewayTools struct {
	mu         sync.Mutex
	engine     *gateway.Engine
	loadConfig func(dir string) (*config.Config, error)
	log        logging.Logger
}

func newMCPServer(t *gatewayTools) *server.MCPServer {
	s := server.NewMCPServer("modgate", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("sync_gateway",
		mcp.WithDescription("Create or update the index.ts next to a file so it re-exports every sibling module"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Active file or directory; its directory is scanned"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Return the resulting gateway without writing it"),
		),
	), t.syncGateway)

	return s
}

func (t *gatewayTools) syncGateway(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir, ok, err := activeDir([]string{req.GetString("path", "")})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultText("no active document, nothing to do"), nil
	}
	dryRun := req.GetBool("dry_run", false)

	t.mu.Lock()
	defer t.mu.Unlock()

	cfg, err := t.loadConfig(dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	syncer, err := t.engine.WithConfig(cfg).SyncerForDir(dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := syncer.Sync(ctx, dryRun)
	if err != nil {
		t.log.Warn("sync_gateway failed", logging.String("dir", dir), logging.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	if dryRun {
		return mcp.NewToolResultText(string(res.Content)), nil
	}

	var b strings.Builder
	report(&b, res)
	if res.Created && len(res.Added) > 0 {
		fmt.Fprintf(&b, "added: %s\n", strings.Join(res.Added, ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}
