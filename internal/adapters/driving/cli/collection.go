package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage course collections",
	Long:  `Create and list collections, and show their indexing status.`,
}

var collectionAddCmd = &cobra.Command{
	Use:   "add [collection-id]",
	Short: "Create a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionAdd,
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections",
	Args:  cobra.NoArgs,
	RunE:  runCollectionList,
}

var collectionStatusCmd = &cobra.Command{
	Use:   "status [collection-id]",
	Short: "Show indexing status of a collection and its documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionStatus,
}

var (
	collectionName    string
	collectionSubject string
)

func init() {
	collectionAddCmd.Flags().StringVar(&collectionName, "name", "", "display name (default: the ID)")
	collectionAddCmd.Flags().StringVar(&collectionSubject, "subject", "", "subject used to enrich embeddings")

	collectionCmd.AddCommand(collectionAddCmd)
	collectionCmd.AddCommand(collectionListCmd)
	collectionCmd.AddCommand(collectionStatusCmd)
	rootCmd.AddCommand(collectionCmd)
}

func runCollectionAdd(cmd *cobra.Command, args []string) error {
	catalog, err := catalogService()
	if err != nil {
		return err
	}

	name := collectionName
	if name == "" {
		name = args[0]
	}

	c, err := catalog.AddCollection(cmd.Context(), domain.Collection{
		ID:      args[0],
		Name:    name,
		Subject: collectionSubject,
	})
	if err != nil {
		return fmt.Errorf("failed to add collection: %w", err)
	}

	cmd.Printf("Collection added: %s (%s)\n", c.ID, c.Name)
	return nil
}

func runCollectionList(cmd *cobra.Command, _ []string) error {
	catalog, err := catalogService()
	if err != nil {
		return err
	}

	collections, err := catalog.ListCollections(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	if len(collections) == 0 {
		cmd.Println("No collections found.")
		return nil
	}

	cmd.Println("Collections:")
	cmd.Println()
	for _, c := range collections {
		cmd.Printf("  %s\n", c.ID)
		cmd.Printf("    Name: %s\n", c.Name)
		if c.Subject != "" {
			cmd.Printf("    Subject: %s\n", c.Subject)
		}
	}
	cmd.Println()
	cmd.Printf("Total: %d collections\n", len(collections))
	return nil
}

func runCollectionStatus(cmd *cobra.Command, args []string) error {
	indexing, err := indexingService()
	if err != nil {
		return err
	}

	status, jobs, err := indexing.CollectionStatus(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get collection status: %w", err)
	}

	cmd.Printf("Collection: %s\n", status.CollectionID)
	cmd.Printf("  Status: %s\n", status.Status)
	cmd.Printf("  Documents: %d\n", status.DocumentCount)
	cmd.Printf("  Segments: %d\n", status.SegmentCount)
	if !status.LastIndexedAt.IsZero() {
		cmd.Printf("  Last indexed: %s\n", status.LastIndexedAt.Format(time.RFC3339))
	}
	if status.ErrorMessage != "" {
		cmd.Printf("  Error: %s\n", status.ErrorMessage)
	}

	if len(jobs) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println("Documents:")
	for i := range jobs {
		printJobLine(cmd, &jobs[i])
	}
	return nil
}

func printJobLine(cmd *cobra.Command, job *domain.DocumentJob) {
	cmd.Printf("  %s  %-10s  %d segments\n", job.DocumentID, job.Status, job.SegmentCount)
	if job.ErrorMessage != "" {
		cmd.Printf("      Error: %s\n", job.ErrorMessage)
	}
}
