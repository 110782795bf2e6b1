package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"settings"},
	Short:   "Manage application settings",
	Long: `View and change settings stored in config.toml.

Environment variables (OPENAI_API_KEY, ANTHROPIC_API_KEY, COURSEMIND_PG_DSN,
COURSEMIND_REDIS_URL, COURSEMIND_DATA_DIR) override the file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Long: `Validates and saves one setting, for example:

  coursemind config set indexing.chunk_size 800
  coursemind config set embedding.provider ollama

Omit the value to be prompted for it without echo, which keeps API keys
out of shell history:

  coursemind config set embedding.api_key

Use 'coursemind config keys' to list the keys.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Args:  cobra.NoArgs,
	RunE:  runConfigKeys,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	settingsSvc, err := settingsService()
	if err != nil {
		return err
	}
	s := settingsSvc.Get()

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Printf("Config file: %s\n", settingsSvc.ConfigPath())
	cmd.Printf("Data directory: %s\n", s.DataDir)
	cmd.Println()

	cmd.Println("[Indexing]")
	cmd.Printf("  Chunk size: %d\n", s.Indexing.ChunkSize)
	cmd.Printf("  Chunk overlap: %d\n", s.Indexing.ChunkOverlap)
	cmd.Printf("  Max parallel: %d\n", s.Indexing.MaxParallel)
	cmd.Printf("  Timeouts: fetch %s, parse %s, embed %s, persist %s\n",
		s.Indexing.FetchTimeout, s.Indexing.ParseTimeout, s.Indexing.EmbedTimeout, s.Indexing.PersistTimeout)
	cmd.Println()

	cmd.Println("[Retry]")
	cmd.Printf("  Max attempts: %d\n", s.Retry.MaxAttempts)
	cmd.Printf("  Backoff: %s to %s\n", s.Retry.InitialInterval, s.Retry.MaxInterval)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", s.Embedding.Provider)
	cmd.Printf("  Model: %s\n", s.Embedding.Model)
	if s.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", s.Embedding.BaseURL)
	}
	if s.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", displayKey(s.Embedding.APIKey))
	}
	cmd.Printf("  Batch size: %d\n", s.Embedding.BatchSize)
	cmd.Printf("  Status: %s\n", configuredLabel(s.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Top K: %d\n", s.Retrieval.TopK)
	cmd.Printf("  Min score: %.2f\n", s.Retrieval.MinScore)
	cmd.Println()

	cmd.Println("[Cache]")
	cmd.Printf("  Backend: %s\n", s.Cache.Backend)
	if s.Cache.Backend == domain.CacheRedis {
		cmd.Printf("  Redis URL: %s\n", s.Cache.RedisURL)
	}
	cmd.Printf("  TTL: embeddings %s, retrieval %s\n", s.Cache.EmbeddingTTL, s.Cache.RetrievalTTL)
	cmd.Println()

	cmd.Println("[Vector index]")
	cmd.Printf("  Backend: %s\n", s.Vector.Backend)
	cmd.Println()

	cmd.Println("[Parser]")
	cmd.Printf("  Backend: %s\n", s.Parser.Backend)
	if s.Parser.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", s.Parser.BaseURL)
	}
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", s.LLM.Provider)
	cmd.Printf("  Model: %s\n", s.LLM.Model)
	if s.LLM.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", displayKey(s.LLM.APIKey))
	}
	cmd.Printf("  Status: %s\n", configuredLabel(s.LLM.IsConfigured()))
	cmd.Println()

	cmd.Println("[Scheduler]")
	if s.Scheduler.Enabled {
		cmd.Printf("  Index pending every %s\n", s.Scheduler.Interval.Round(time.Minute))
	} else {
		cmd.Println("  Disabled")
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	settingsSvc, err := settingsService()
	if err != nil {
		return err
	}

	key := args[0]
	if len(args) == 2 {
		if err := settingsSvc.Set(key, args[1]); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
		cmd.Printf("%s = %s\n", key, args[1])
		return nil
	}

	cmd.Printf("Enter %s: ", key)
	value, err := readSecret(cmd)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if value == "" {
		return fmt.Errorf("no value entered for %s", key)
	}
	if err := settingsSvc.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	cmd.Printf("%s = %s\n", key, maskAPIKey(value))
	return nil
}

// readSecret reads one line without echo when stdin is a terminal.
func readSecret(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		cmd.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runConfigKeys(cmd *cobra.Command, _ []string) error {
	settingsSvc, err := settingsService()
	if err != nil {
		return err
	}
	for _, k := range settingsSvc.Keys() {
		cmd.Println(k)
	}
	return nil
}

func configuredLabel(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func displayKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return maskAPIKey(key)
}

// maskAPIKey masks an API key for display.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
