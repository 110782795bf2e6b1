package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage course documents",
	Long:  `Register, list, inspect, retry or delete the documents of a collection.`,
}

var documentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a document in a collection",
	Long: `Registers a document for indexing. The URL may be a local path, a
file:// URL or an http(s):// URL. Registering the same URL again updates the
document; a new --version makes the next index run rebuild it.`,
	Args: cobra.NoArgs,
	RunE: runDocumentAdd,
}

var documentListCmd = &cobra.Command{
	Use:   "list [collection-id]",
	Short: "List documents of a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentList,
}

var documentStatusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show the indexing job of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentStatus,
}

var documentRetryCmd = &cobra.Command{
	Use:   "retry [doc-id]",
	Short: "Reset a failed document to pending",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentRetry,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Remove a document's segments and job",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var (
	docCollection string
	docURL        string
	docName       string
	docTitle      string
	docSubject    string
	docTopic      string
	docVersion    string
)

func init() {
	flags := documentAddCmd.Flags()
	flags.StringVarP(&docCollection, "collection", "c", "", "collection the document belongs to")
	flags.StringVarP(&docURL, "url", "u", "", "path or URL of the document")
	flags.StringVar(&docName, "name", "", "file name used for attribution (default: from the URL)")
	flags.StringVar(&docTitle, "title", "", "display title")
	flags.StringVar(&docSubject, "subject", "", "subject override (default: the collection subject)")
	flags.StringVar(&docTopic, "topic", "", "topic override (default: from the file name)")
	flags.StringVar(&docVersion, "version", "", "content version; a change triggers re-indexing")
	_ = documentAddCmd.MarkFlagRequired("collection")
	_ = documentAddCmd.MarkFlagRequired("url")

	documentCmd.AddCommand(documentAddCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentStatusCmd)
	documentCmd.AddCommand(documentRetryCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentAdd(cmd *cobra.Command, _ []string) error {
	catalog, err := catalogService()
	if err != nil {
		return err
	}

	doc, err := catalog.AddDocument(cmd.Context(), domain.SourceDocument{
		CollectionID: docCollection,
		SourceURL:    docURL,
		Name:         docName,
		Title:        docTitle,
		Subject:      docSubject,
		Topic:        docTopic,
		Version:      docVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}

	cmd.Printf("Document registered: %s\n", doc.ID)
	cmd.Printf("  Name: %s\n", doc.Name)
	cmd.Printf("  Topic: %s\n", doc.EffectiveTopic())
	return nil
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	catalog, err := catalogService()
	if err != nil {
		return err
	}

	collectionID := args[0]
	docs, err := catalog.ListDocuments(cmd.Context(), collectionID)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Printf("No documents found for collection: %s\n", collectionID)
		return nil
	}

	cmd.Printf("Documents for collection %s:\n\n", collectionID)
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Name: %s\n", docs[i].DisplayName())
		cmd.Printf("    Topic: %s\n", docs[i].EffectiveTopic())
		cmd.Printf("    URL: %s\n", docs[i].SourceURL)
		if docs[i].Version != "" {
			cmd.Printf("    Version: %s\n", docs[i].Version)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentStatus(cmd *cobra.Command, args []string) error {
	indexing, err := indexingService()
	if err != nil {
		return err
	}

	job, err := indexing.DocumentStatus(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		cmd.Printf("Document %s has not been scheduled for indexing.\n", args[0])
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get document status: %w", err)
	}

	cmd.Printf("Document: %s\n", job.DocumentID)
	cmd.Printf("  Collection: %s\n", job.CollectionID)
	cmd.Printf("  Status: %s\n", job.Status)
	cmd.Printf("  Segments: %d\n", job.SegmentCount)
	cmd.Printf("  Attempts: %d\n", job.Attempts)
	if job.SourceVersion != "" {
		cmd.Printf("  Version: %s\n", job.SourceVersion)
	}
	if !job.CompletedAt.IsZero() {
		cmd.Printf("  Finished: %s\n", job.CompletedAt.Format(time.RFC3339))
	}
	if job.ErrorMessage != "" {
		cmd.Printf("  Error: %s\n", job.ErrorMessage)
	}
	return nil
}

func runDocumentRetry(cmd *cobra.Command, args []string) error {
	indexing, err := indexingService()
	if err != nil {
		return err
	}

	job, err := indexing.RetryDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to retry document: %w", err)
	}

	cmd.Printf("Document %s is %s; run 'coursemind index %s' to process it.\n",
		job.DocumentID, job.Status, job.CollectionID)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	indexing, err := indexingService()
	if err != nil {
		return err
	}

	if err := indexing.DeleteDocument(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}
