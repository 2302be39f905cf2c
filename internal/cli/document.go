package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var ingestJSON bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [file.pdf...]",
	Short: "Ingest PDF documents",
	Long:  `Extracts the text of each PDF, splits it into chunks and stores the chunk embeddings.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocuments,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	svc, err := requireService()
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		result, err := svc.Upload(ctx, filepath.Base(path), data)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}

		if ingestJSON {
			out, err := json.Marshal(result)
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			continue
		}
		cmd.Printf("Ingested %s as %s (%d chunks, %d embedded)\n",
			result.Filename, result.ID, result.Chunks, result.Embedded)
	}
	return nil
}

func runDocuments(cmd *cobra.Command, args []string) error {
	svc, err := requireService()
	if err != nil {
		return err
	}

	docs, err := svc.ListDocuments(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for _, doc := range docs {
		cmd.Printf("%s  %-32s  %4d chunks  %8d bytes  %s\n",
			doc.ID, doc.Filename, doc.ChunkCount, doc.FileSize, doc.UploadDate.Format("2006-01-02 15:04"))
	}
	return nil
}
