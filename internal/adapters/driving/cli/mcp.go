package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coursemind/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can retrieve
course material and check indexing progress.

By default the server speaks JSON-RPC over stdio. Use --port to serve
streamable HTTP instead.

Examples:
  # Stdio mode
  coursemind mcp serve

  # HTTP mode
  coursemind mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "coursemind": {
        "command": "/path/to/coursemind",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	server, err := newMCPServer()
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		cmd.Printf("MCP server listening on http://localhost%s/mcp\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}

func newMCPServer() (*mcp.Server, error) {
	retrieval, err := retrievalService()
	if err != nil {
		return nil, err
	}
	return mcp.NewServer(&mcp.Ports{
		Retrieval: retrieval,
		Indexing:  app.Indexing,
		Catalog:   app.Catalog,
	})
}
