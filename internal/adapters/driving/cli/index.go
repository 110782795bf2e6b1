package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
)

var indexCmd = &cobra.Command{
	Use:   "index [collection-id]",
	Short: "Index the documents of a collection",
	Long: `Fetches, parses, segments and embeds every document of the collection
that is new or changed. Documents that fail are recorded and skipped; use
--retry-failed to try them again.

With --background the run is started as a cancellable background run and
its progress is reported until it finishes. Interrupting the command
cancels the run between documents.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

var (
	indexBackground  bool
	indexRetryFailed bool

	// indexPollInterval is how often background progress is printed.
	indexPollInterval = 500 * time.Millisecond
)

func init() {
	indexCmd.Flags().BoolVar(&indexBackground, "background", false, "run as a background run and poll progress")
	indexCmd.Flags().BoolVar(&indexRetryFailed, "retry-failed", false, "reset failed documents to pending first")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	indexing, err := indexingService()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	collectionID := args[0]

	if indexRetryFailed && !indexBackground {
		cmd.Printf("Retrying failed documents of %s...\n", collectionID)
		summary, err := indexing.RetryCollection(ctx, collectionID)
		if err != nil {
			return fmt.Errorf("index failed: %w", err)
		}
		printSummary(cmd, summary)
		return nil
	}

	if indexRetryFailed {
		if err := retryFailed(ctx, indexing, collectionID); err != nil {
			return err
		}
	}

	if indexBackground {
		return indexWithProgress(ctx, cmd, indexing, collectionID)
	}

	cmd.Printf("Indexing collection: %s...\n", collectionID)
	summary, err := indexing.IndexCollection(ctx, collectionID)
	if err != nil {
		if summary != nil {
			printSummary(cmd, summary)
		}
		return fmt.Errorf("index failed: %w", err)
	}
	printSummary(cmd, summary)
	return nil
}

func retryFailed(ctx context.Context, indexing driving.IndexingService, collectionID string) error {
	_, jobs, err := indexing.CollectionStatus(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("failed to get collection status: %w", err)
	}
	for i := range jobs {
		if jobs[i].Status != domain.JobFailed {
			continue
		}
		if _, err := indexing.RetryDocument(ctx, jobs[i].DocumentID); err != nil {
			return fmt.Errorf("retry %s: %w", jobs[i].DocumentID, err)
		}
	}
	return nil
}

// indexWithProgress starts a background run and polls it until it ends.
func indexWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	indexing driving.IndexingService,
	collectionID string,
) error {
	run, err := indexing.StartCollectionIndex(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	cmd.Printf("Started run %s for %s\n", run.ID, collectionID)

	ticker := time.NewTicker(indexPollInterval)
	defer ticker.Stop()

	lastDone := -1
	for {
		select {
		case <-ctx.Done():
			// Cancel the run and wait for started documents to finish.
			if err := indexing.CancelRun(run.ID); err != nil {
				return fmt.Errorf("cancel run: %w", err)
			}
			ctx = context.WithoutCancel(ctx)
		case <-ticker.C:
		}

		current, err := indexing.Run(run.ID)
		if err != nil {
			return fmt.Errorf("get run: %w", err)
		}

		if current.Status != domain.RunRunning {
			cmd.Println()
			if current.Summary != nil {
				printSummary(cmd, current.Summary)
			}
			if current.Status == domain.RunCompleted {
				return nil
			}
			return fmt.Errorf("run %s %s: %s", current.ID, current.Status, current.Error)
		}

		// Progress is best effort.
		status, _, statusErr := indexing.CollectionStatus(ctx, collectionID)
		if statusErr == nil && status.SegmentCount != lastDone {
			cmd.Printf("\rIndexing... %d segments", status.SegmentCount)
			lastDone = status.SegmentCount
		}
	}
}

func printSummary(cmd *cobra.Command, s *domain.IndexSummary) {
	cmd.Printf("Collection %s: %s\n", s.CollectionID, s.Status)
	cmd.Printf("  Completed: %d  Failed: %d  Skipped: %d", s.Completed, s.Failed, s.Skipped)
	if s.Conflicts > 0 {
		cmd.Printf("  In progress elsewhere: %d", s.Conflicts)
	}
	if s.Pending > 0 {
		cmd.Printf("  Left pending: %d", s.Pending)
	}
	cmd.Println()
	if !s.FinishedAt.IsZero() {
		cmd.Printf("  Took: %s\n", s.Duration().Round(time.Millisecond))
	}
	ids := make([]string, 0, len(s.Failures))
	for id := range s.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		cmd.Printf("  Failed %s: %s\n", id, s.Failures[id])
	}
}
