package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

var (
	askCollection string
	askLimit      int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from a collection's material",
	Long: `Retrieves the most relevant passages of the collection and asks the
configured LLM to answer from them, citing each source as [Source N].`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askCollection, "collection", "c", "", "collection to answer from")
	askCmd.Flags().IntVarP(&askLimit, "limit", "n", 0, "number of passages to use (default from config)")
	_ = askCmd.MarkFlagRequired("collection")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	answers, err := answerService()
	if err != nil {
		return err
	}

	answer, err := answers.Ask(cmd.Context(), domain.RetrievalQuery{
		Text:  args[0],
		Scope: domain.Scope{CollectionID: askCollection},
		TopK:  askLimit,
	}, nil)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(answer.Text)
	if len(answer.Sources) == 0 {
		return nil
	}

	cmd.Println()
	cmd.Println("Sources:")
	for i := range answer.Sources {
		cmd.Printf("  [Source %d] %s\n", i+1, sourceLabel(&answer.Sources[i]))
	}
	return nil
}
