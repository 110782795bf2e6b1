package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

var (
	retrieveCollection string
	retrieveDocument   string
	retrieveLimit      int
	retrieveMinScore   float64
	retrieveJSON       bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Find the passages most relevant to a question",
	Long: `Embeds the question and searches the vector index by cosine
similarity. Every result names its source file and page.
An empty result means nothing scored above --min-score.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringVarP(&retrieveCollection, "collection", "c", "", "restrict to a collection")
	retrieveCmd.Flags().StringVarP(&retrieveDocument, "document", "d", "", "restrict to a document")
	retrieveCmd.Flags().IntVarP(&retrieveLimit, "limit", "n", 0, "maximum number of results (default from config)")
	retrieveCmd.Flags().Float64Var(&retrieveMinScore, "min-score", 0, "minimum cosine similarity (default from config)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	retrieval, err := retrievalService()
	if err != nil {
		return err
	}

	q := domain.RetrievalQuery{
		Text: args[0],
		Scope: domain.Scope{
			CollectionID: retrieveCollection,
			DocumentID:   retrieveDocument,
		},
		TopK: retrieveLimit,
	}
	if cmd.Flags().Changed("min-score") {
		minScore := retrieveMinScore
		q.MinScore = &minScore
	}

	results, err := retrieval.Retrieve(cmd.Context(), q)
	if errors.Is(err, domain.ErrRetrievalUnavailable) {
		return fmt.Errorf("vector index unavailable, try again later: %w", err)
	}
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	if retrieveJSON {
		return outputRetrieveJSON(cmd, results)
	}
	return outputRetrieveTable(cmd, results)
}

func outputRetrieveJSON(cmd *cobra.Command, results []domain.RetrievedSegment) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputRetrieveTable(cmd *cobra.Command, results []domain.RetrievedSegment) error {
	if len(results) == 0 {
		cmd.Println("No relevant course material found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := &results[i]
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, sourceLabel(r), r.Score)
		cmd.Printf("      %s\n", snippet(r.Text, 240))
		cmd.Println()
	}
	return nil
}

// sourceLabel formats "name, page N" for attribution.
func sourceLabel(r *domain.RetrievedSegment) string {
	name := r.SourceName
	if name == "" {
		name = r.DocumentID
	}
	if r.PageNumber > 0 {
		return fmt.Sprintf("%s, page %d", name, r.PageNumber)
	}
	return name
}

// snippet returns the first n runes of text on one line.
func snippet(text string, n int) string {
	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' || r == '\r' || r == '\t' {
			runes[i] = ' '
		}
	}
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
