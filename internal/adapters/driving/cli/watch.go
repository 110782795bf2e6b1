package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/coursemind/internal/adapters/driving/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Register and index course files as they appear",
	Long: `Watch a directory laid out as one sub-directory per collection:

  courses/
    calculus-101/
      week_1-limits.pdf
    physics-201/
      syllabus.pdf

New or changed files are registered and their collection is indexed once
writes settle. Missing collections are created from the directory name.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("debounce", watcher.DefaultDebounce, "quiet period before indexing changes")
	watchCmd.Flags().StringSlice("ignore", nil, "glob patterns of <collection>/<file> paths to skip (** allowed)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	w, err := newWatcher(cmd, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	return w.Run(cmd.Context())
}

func newWatcher(cmd *cobra.Command, dir string) (*watcher.Watcher, error) {
	catalog, err := catalogService()
	if err != nil {
		return nil, err
	}
	indexing, err := indexingService()
	if err != nil {
		return nil, err
	}
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return nil, err
	}
	ignore, err := cmd.Flags().GetStringSlice("ignore")
	if err != nil {
		return nil, err
	}
	return watcher.New(dir, catalog, indexing,
		watcher.WithDebounce(debounce),
		watcher.WithIgnore(ignore...),
	), nil
}
