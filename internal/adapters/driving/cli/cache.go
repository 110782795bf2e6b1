package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached retrieval results",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate [collection-id]",
	Short: "Drop cached retrieval results of a collection",
	Long: `Removes cached retrieval results for the collection so the next
query searches the vector index. Embedding cache entries are kept: they are
keyed by content and stay valid.`,
	Args: cobra.ExactArgs(1),
	RunE: runCacheInvalidate,
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	retrieval, err := retrievalService()
	if err != nil {
		return err
	}

	if err := retrieval.InvalidateCollection(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	cmd.Printf("Retrieval cache cleared for %s.\n", args[0])
	return nil
}
