package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anser-ai/anser/internal/rag"
)

var ingestExtensions []string

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Chunk, embed, and index a document or directory",
	Long: `Ingest reads a text file, or every matching file under a directory,
splits it into overlapping chunks, embeds each chunk, and stores the
result in the index. Re-ingesting a path replaces its chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestExtensions, "ext", nil,
		"file extensions to ingest when walking a directory (default .txt,.md)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ingestor := a.ingestor
	if len(ingestExtensions) > 0 {
		exts := make([]string, len(ingestExtensions))
		for i, ext := range ingestExtensions {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			exts[i] = ext
		}
		ingestor = rag.NewIngestor(a.client, a.index, a.logger,
			rag.WithChunking(a.cfg.ChunkSize, a.cfg.ChunkOverlap),
			rag.WithExtensions(exts))
	}

	stats, err := ingestor.IngestPath(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d document(s), %d chunk(s).\n", stats.Documents, stats.Chunks)
	return nil
}
