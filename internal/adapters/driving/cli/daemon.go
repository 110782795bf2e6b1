package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/coursemind/internal/adapters/driving/mcp"
	"github.com/custodia-labs/coursemind/internal/adapters/driving/watcher"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled indexing in the foreground",
	Long: `Run the scheduler, which indexes pending documents on an interval.

Optionally watch a directory for new course files and serve MCP over HTTP
in the same process. Stops on Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().String("watch", "", "directory of collections to watch")
	daemonCmd.Flags().Duration("debounce", watcher.DefaultDebounce, "quiet period before indexing watched changes")
	daemonCmd.Flags().StringSlice("ignore", nil, "glob patterns of watched files to skip")
	daemonCmd.Flags().Int("mcp-port", 0, "serve MCP over HTTP on this port (0 = disabled)")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if app == nil || app.Scheduler == nil {
		return errors.New("scheduler not configured")
	}
	watchDir, _ := cmd.Flags().GetString("watch")
	mcpPort, _ := cmd.Flags().GetInt("mcp-port")

	var (
		w      *watcher.Watcher
		server *mcp.Server
		err    error
	)
	if watchDir != "" {
		if w, err = newWatcher(cmd, watchDir); err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
	}
	if mcpPort > 0 {
		if server, err = newMCPServer(); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return app.Scheduler.Start(ctx)
	})
	if w != nil {
		g.Go(func() error {
			return w.Run(ctx)
		})
		cmd.Printf("Watching %s\n", watchDir)
	}
	if server != nil {
		addr := fmt.Sprintf(":%d", mcpPort)
		g.Go(func() error {
			return server.RunHTTP(ctx, addr)
		})
		cmd.Printf("MCP server listening on http://localhost%s/mcp\n", addr)
	}

	cmd.Println("Scheduler running (Ctrl+C to stop)")
	return ignoreCanceled(g.Wait())
}

// ignoreCanceled treats shutdown by Ctrl+C as success.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
