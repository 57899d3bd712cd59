package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anser-ai/anser/internal/chat"
	"github.com/anser-ai/anser/internal/provider"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive question-answering session",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.service.NewSession(ctx, "interactive chat")
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	fmt.Println("Chat started. Type 'quit' or 'exit' to end the conversation.")
	fmt.Println("Answers are grounded in the ingested documents.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("reading input: %w", err)
			}
			fmt.Println("\nGoodbye!")
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "quit", "exit":
			fmt.Println("Goodbye!")
			return nil
		case "":
			continue
		}

		answer, err := a.service.Submit(ctx, sess.ID, input)
		if err != nil {
			// Per-query upstream failures do not end the session;
			// the history is unchanged, so asking again is safe.
			if errors.Is(err, provider.ErrTimeout) ||
				errors.Is(err, provider.ErrEmbedding) ||
				errors.Is(err, provider.ErrCompletion) {
				fmt.Fprintf(os.Stderr, "Error: %v\nTry again.\n\n", err)
				continue
			}
			return err
		}

		printAnswer(answer)
	}
}

// printAnswer writes the answer, the retrieved chunks when debug is on,
// and a references footer mapping each [n] citation to its source.
func printAnswer(answer chat.Answer) {
	if len(answer.Matches) > 0 {
		fmt.Printf("\n[Retrieved %d relevant chunk(s):]\n", len(answer.Matches))
		for i, m := range answer.Matches {
			fmt.Printf("\n  Chunk %d:\n", i+1)
			fmt.Printf("  Source: %s\n", m.Chunk.SourceID)
			if m.Path != "" {
				fmt.Printf("  Path: %s\n", m.Path)
			}
			fmt.Printf("  Chunk: %d\n", m.Chunk.ChunkIndex)
			fmt.Printf("  Score: %.3f\n", m.Score)
			fmt.Printf("  %s\n", m.Chunk.Text)
		}
		fmt.Println("\n[End chunks]")
	}

	fmt.Printf("\nBot: %s\n", answer.Text)

	if len(answer.Sources) > 0 {
		fmt.Println("\nReferences:")
		for _, src := range answer.Sources {
			fmt.Printf("  [%d] %s (chunk %d): %s\n",
				src.Ordinal, src.SourceID, src.ChunkIndex, src.Preview)
		}
	}
	fmt.Println()
}
