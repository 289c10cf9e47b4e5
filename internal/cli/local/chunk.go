// Package local holds the docindexd commands that work on local files and a
// bleve index directory, without the database.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docindex/internal/chunking"
	"github.com/cloo-solutions/docindex/internal/extract"
	"github.com/cloo-solutions/docindex/internal/tokens"
)

// TokenCounter counts model tokens in a text.
type TokenCounter interface {
	Count(text string) int
}

// ChunkPlanOutput is the JSON printed by the chunk command.
type ChunkPlanOutput struct {
	DocumentID      string        `json:"document_id"`
	Mode            chunking.Mode `json:"mode"`
	ChunkCount      int           `json:"chunk_count"`
	MaxChars        int           `json:"max_chars"`
	OverlapSegments int           `json:"overlap_segments"`
	Chunks          []ChunkOutput `json:"chunks"`
}

// ChunkOutput describes one planned chunk.
type ChunkOutput struct {
	ID         string `json:"id"`
	ChunkIndex int    `json:"chunk_index"`
	Chars      int    `json:"chars"`
	Tokens     int    `json:"tokens"`
	Text       string `json:"text"`
}

// ChunkCmd returns the chunk command
func ChunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Print the chunk plan of a file",
		Long: `Extract the text of a local file and print the chunks it would be indexed
as, in JSON. Nothing is written to any index.`,
		Args: cobra.ExactArgs(1),
		RunE: runChunk,
	}

	addChunkingFlags(cmd)
	cmd.Flags().String("id", "", "Document id used for chunk ids (default: file name)")
	cmd.Flags().String("content-type", "", "Content type of the file (default: sniffed)")
	cmd.Flags().String("encoding", "", "tiktoken encoding for exact token counts (default: estimate)")

	return cmd
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg, err := chunkingConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	contentType, _ := cmd.Flags().GetString("content-type")
	text, err := readText(cmd.Context(), args[0], contentType)
	if err != nil {
		return err
	}

	docID, _ := cmd.Flags().GetString("id")
	if docID == "" {
		docID = documentIDFromPath(args[0])
	}

	var counter TokenCounter
	if encoding, _ := cmd.Flags().GetString("encoding"); encoding != "" {
		counter = tokens.NewCounter(encoding)
	}

	plan, err := buildChunkPlan(cfg, docID, text, counter)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), plan)
}

func buildChunkPlan(cfg chunking.Config, docID, text string, counter TokenCounter) (*ChunkPlanOutput, error) {
	chunker, err := chunking.New(cfg)
	if err != nil {
		return nil, err
	}

	chunks, mode := chunker.Chunks(docID, text)
	out := &ChunkPlanOutput{
		DocumentID:      docID,
		Mode:            mode,
		ChunkCount:      len(chunks),
		MaxChars:        cfg.MaxChars,
		OverlapSegments: cfg.OverlapSegments,
		Chunks:          make([]ChunkOutput, len(chunks)),
	}
	for i, c := range chunks {
		n := tokens.Estimate(c.Text)
		if counter != nil {
			n = counter.Count(c.Text)
		}
		out.Chunks[i] = ChunkOutput{
			ID:         c.ID(cfg.Prefix),
			ChunkIndex: c.ChunkIndex,
			Chars:      len([]rune(c.Text)),
			Tokens:     n,
			Text:       c.Text,
		}
	}
	return out, nil
}

func addChunkingFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-chars", chunking.DefaultMaxChars, "Maximum characters per chunk")
	cmd.Flags().Int("overlap", chunking.DefaultOverlapSegments, "Segments repeated at the start of the next chunk")
	cmd.Flags().String("prefix", chunking.DefaultPrefix, "Chunk id prefix")
}

func chunkingConfigFromFlags(cmd *cobra.Command) (chunking.Config, error) {
	cfg := chunking.DefaultConfig()
	cfg.MaxChars, _ = cmd.Flags().GetInt("max-chars")
	cfg.OverlapSegments, _ = cmd.Flags().GetInt("overlap")
	cfg.Prefix, _ = cmd.Flags().GetString("prefix")
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readText(ctx context.Context, path, contentType string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	text, err := extract.New().Extract(ctx, data, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", path, err)
	}
	return text, nil
}

// documentIDFromPath uses the file name without extension.
func documentIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
