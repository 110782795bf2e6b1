// Package cli provides the coursemind command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
	"github.com/custodia-labs/coursemind/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services holds the driving ports the commands use.
type Services struct {
	Catalog         driving.CatalogService
	Indexing        driving.IndexingService
	Retrieval       driving.RetrievalService
	Answer          driving.AnswerService
	Settings        driving.SettingsService
	Scheduler       driving.Scheduler
	SchedulerConfig domain.SchedulerConfig

	// Close releases stores and clients. May be nil.
	Close func() error
}

// Builder wires Services from a config directory.
type Builder func(ctx context.Context, configDir string) (*Services, error)

// annotationNoServices marks commands that run without wiring.
const annotationNoServices = "coursemind/no-services"

var (
	app     *Services
	builder Builder
	built   bool

	verbose   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "coursemind",
	Short: "Index course PDFs and retrieve what answers a question",
	Long: `coursemind indexes educational documents into a vector index and
retrieves the passages most relevant to a student's question, with the
source file and page of every passage.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.coursemind)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetBuilder sets how Services are wired before a command runs.
func SetBuilder(b Builder) {
	builder = b
}

// SetServices injects already wired Services.
func SetServices(s *Services) {
	app = s
}

// Execute runs the root command and releases what the builder wired.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	return errors.Join(err, teardown())
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if app != nil || builder == nil || cmd.Annotations[annotationNoServices] == "true" {
		return nil
	}
	s, err := builder(cmd.Context(), configDir)
	if err != nil {
		return fmt.Errorf("initialise: %w", err)
	}
	app = s
	built = true
	return nil
}

func teardown() error {
	if !built || app == nil {
		return nil
	}
	closeFn := app.Close
	app = nil
	built = false
	if closeFn != nil {
		return closeFn()
	}
	return nil
}

func catalogService() (driving.CatalogService, error) {
	if app == nil || app.Catalog == nil {
		return nil, errors.New("catalog service not configured")
	}
	return app.Catalog, nil
}

func indexingService() (driving.IndexingService, error) {
	if app == nil || app.Indexing == nil {
		return nil, errors.New("indexing service not configured")
	}
	return app.Indexing, nil
}

func retrievalService() (driving.RetrievalService, error) {
	if app == nil || app.Retrieval == nil {
		return nil, errors.New("retrieval service not configured")
	}
	return app.Retrieval, nil
}

func answerService() (driving.AnswerService, error) {
	if app == nil || app.Answer == nil {
		return nil, errors.New("answer service not configured")
	}
	return app.Answer, nil
}

func settingsService() (driving.SettingsService, error) {
	if app == nil || app.Settings == nil {
		return nil, errors.New("settings service not configured")
	}
	return app.Settings, nil
}
