package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchLimit int
	searchJSON  bool
	askLimit    int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search ingested documents",
	Long: `Ranks chunks by vector similarity. When vectors are unavailable the search
falls back to in-process cosine similarity and finally to substring matching.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the most relevant chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	askCmd.Flags().IntVarP(&askLimit, "limit", "n", 5, "number of chunks to retrieve")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, err := requireService()
	if err != nil {
		return err
	}

	results, err := svc.Search(context.Background(), args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	if results.Degraded {
		cmd.Printf("(served by %s search)\n", results.Tier)
	}
	for i, r := range results.Results {
		cmd.Printf("  [%d] %s #%d (%.3f)\n", i+1, r.Filename, r.ChunkIndex, r.Score)
		cmd.Printf("      %s\n", snippet(r.Content, 160))
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := requireService()
	if err != nil {
		return err
	}

	result, err := svc.Ask(context.Background(), args[0], askLimit)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(result.Answer)
	if len(result.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, s := range result.Sources {
			cmd.Printf("  [%d] %s #%d\n", i+1, s.Filename, s.ChunkIndex)
		}
	}
	return nil
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
