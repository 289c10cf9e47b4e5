package local

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docindex/internal/chunking"
	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/cloo-solutions/docindex/internal/index"
	"github.com/cloo-solutions/docindex/internal/openai"
	"github.com/cloo-solutions/docindex/internal/service"
	"github.com/cloo-solutions/docindex/internal/tokens"
)

// DefaultIndexPath is the bleve directory used when --index-path is not set.
const DefaultIndexPath = "docindex.bleve"

// IndexCmd returns the index command
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <file>",
		Short: "Index a local file into a bleve directory",
		Long: `Chunk a local file and upsert the chunks into a bleve index directory.
Re-indexing the same document id removes chunks the new split no longer
produces. With --embed, vectors are generated through OPENAI_API_KEY.`,
		Args: cobra.ExactArgs(1),
		RunE: runIndex,
	}

	addChunkingFlags(cmd)
	cmd.Flags().String("index-path", DefaultIndexPath, "Bleve index directory (created if missing)")
	cmd.Flags().String("id", "", "Document id (default: file name)")
	cmd.Flags().String("title", "", "Document title")
	cmd.Flags().String("category", "", "Document category")
	cmd.Flags().String("description", "", "Document description")
	cmd.Flags().String("content-type", "", "Content type of the file (default: sniffed)")
	cmd.Flags().Bool("embed", false, "Generate embeddings with OpenAI")
	cmd.Flags().Int("concurrency", 1, "Embedding requests in flight")

	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := chunkingConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	contentType, _ := cmd.Flags().GetString("content-type")
	text, err := readText(ctx, args[0], contentType)
	if err != nil {
		return err
	}

	var embedder service.Embedder
	if embed, _ := cmd.Flags().GetBool("embed"); embed {
		client, err := openai.NewClientFromEnv()
		if err != nil {
			return err
		}
		embedder = client
	}

	path, _ := cmd.Flags().GetString("index-path")
	idx, err := index.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := idx.Close(); err != nil {
			log.Printf("Failed to close index %s: %v", path, err)
		}
	}()

	req := service.IndexRequest{Text: text}
	req.DocumentID, _ = cmd.Flags().GetString("id")
	if req.DocumentID == "" {
		req.DocumentID = documentIDFromPath(args[0])
	}
	req.Title, _ = cmd.Flags().GetString("title")
	if req.Title == "" {
		req.Title = req.DocumentID
	}
	req.Category, _ = cmd.Flags().GetString("category")
	req.Description, _ = cmd.Flags().GetString("description")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	result, err := indexFile(ctx, idx, embedder, cfg, concurrency, req)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

// indexFile indexes req into idx. There is no document table offline, so
// stale chunks are whatever idx still holds for the document beyond the new
// split.
func indexFile(ctx context.Context, idx service.ChunkIndex, embedder service.Embedder, cfg chunking.Config, concurrency int, req service.IndexRequest) (*service.IndexResult, error) {
	indexer, err := service.NewIndexer(service.IndexerConfig{
		Chunking:         cfg,
		EmbedConcurrency: concurrency,
		MaxInputTokens:   tokens.EmbeddingInputLimit,
	}, embedder, idx)
	if err != nil {
		return nil, err
	}

	result, err := indexer.Index(ctx, req)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return result, fmt.Errorf("%d of %d chunks failed to index", result.FailedChunks(), result.ChunkCount)
	}
	return result, nil
}

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a local bleve index",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().String("index-path", DefaultIndexPath, "Bleve index directory")
	cmd.Flags().IntP("limit", "n", 10, "Maximum number of results")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	path, _ := cmd.Flags().GetString("index-path")
	idx, err := index.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := idx.Close(); err != nil {
			log.Printf("Failed to close index %s: %v", path, err)
		}
	}()

	limit, _ := cmd.Flags().GetInt("limit")
	return searchIndex(ctx, idx, cmd.OutOrStdout(), args[0], limit)
}

type textSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.ChunkSearchResult, error)
}

type searchHitOutput struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Title      string  `json:"title,omitempty"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

func searchIndex(ctx context.Context, idx textSearcher, out io.Writer, query string, limit int) error {
	results, err := idx.Search(ctx, query, limit)
	if err != nil {
		return err
	}
	hits := make([]searchHitOutput, 0, len(results))
	for _, r := range results {
		hits = append(hits, searchHitOutput{
			ID:         r.Chunk.ID,
			DocumentID: r.Chunk.DocumentID,
			ChunkIndex: r.Chunk.ChunkIndex,
			Title:      r.Chunk.Title,
			Score:      r.Score,
			Content:    r.Chunk.Content,
		})
	}
	return writeJSON(out, map[string]interface{}{
		"query":   query,
		"results": hits,
	})
}
