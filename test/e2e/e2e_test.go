//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type documentBody struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Error    string `json:"error"`
	Chunking *struct {
		Version    int    `json:"version"`
		ChunkCount int    `json:"chunk_count"`
		MaxChars   int    `json:"max_chars"`
		Mode       string `json:"mode"`
	} `json:"chunking"`
}

type chunkList struct {
	DocumentID string `json:"document_id"`
	Chunks     []struct {
		ID         string `json:"id"`
		ChunkIndex int    `json:"chunk_index"`
		ChunkCount int    `json:"chunk_count"`
		Content    string `json:"content"`
	} `json:"chunks"`
}

func fruitGuide() string {
	return strings.Join([]string{
		"Apples grow on trees in temperate orchards worldwide.",
		"Bananas are harvested green and ripen during transport.",
		"Cherries bloom early in spring and fruit by early summer.",
		"Dates thrive in hot desert climates with little rain at all.",
	}, "\n\n")
}

func (e *E2ETestEnv) getDocument(t *testing.T, id string) documentBody {
	t.Helper()
	resp, err := e.Get("/documents/" + id)
	require.NoError(t, err)
	var doc documentBody
	require.NoError(t, json.Unmarshal(resp.Data, &doc))
	return doc
}

func (e *E2ETestEnv) listChunks(t *testing.T, id string) chunkList {
	t.Helper()
	resp, err := e.Get("/documents/" + id + "/chunks")
	require.NoError(t, err)
	var list chunkList
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	return list
}

func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	var docID string

	t.Run("create document", func(t *testing.T) {
		resp, err := env.Post("/documents", map[string]interface{}{
			"title":    "Fruit guide",
			"category": "food",
			"body":     fruitGuide(),
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.Status)

		var doc documentBody
		require.NoError(t, json.Unmarshal(resp.Data, &doc))
		require.NotEmpty(t, doc.ID)
		assert.Equal(t, "pending", doc.Status)
		docID = doc.ID
	})

	t.Run("worker indexes document", func(t *testing.T) {
		env.RunJobs()

		doc := env.getDocument(t, docID)
		assert.Equal(t, "indexed", doc.Status)
		require.NotNil(t, doc.Chunking)
		assert.Equal(t, 4, doc.Chunking.ChunkCount)
		assert.Equal(t, 80, doc.Chunking.MaxChars)
		assert.Equal(t, "generic", doc.Chunking.Mode)

		list := env.listChunks(t, docID)
		require.Len(t, list.Chunks, 4)
		assert.Equal(t, "doc_"+docID+"_chunk_000", list.Chunks[0].ID)
		assert.Equal(t, "doc_"+docID+"_chunk_003", list.Chunks[3].ID)
		assert.Contains(t, list.Chunks[1].Content, "Bananas")
	})

	t.Run("lexical search finds chunk", func(t *testing.T) {
		resp, err := env.Post("/search", map[string]interface{}{
			"query": "bananas",
			"mode":  "lexical",
		})
		require.NoError(t, err)

		var result struct {
			Results []struct {
				ChunkID    string `json:"chunk_id"`
				DocumentID string `json:"document_id"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.NotEmpty(t, result.Results)
		assert.Equal(t, "doc_"+docID+"_chunk_001", result.Results[0].ChunkID)
		assert.Equal(t, docID, result.Results[0].DocumentID)
	})

	t.Run("shrinking content removes stale chunks", func(t *testing.T) {
		resp, err := env.Put("/documents/"+docID+"/content", map[string]interface{}{
			"body": "Only apples remain in this document.",
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.Status)

		env.RunJobs()

		doc := env.getDocument(t, docID)
		assert.Equal(t, "indexed", doc.Status)
		require.NotNil(t, doc.Chunking)
		assert.Equal(t, 1, doc.Chunking.ChunkCount)

		list := env.listChunks(t, docID)
		require.Len(t, list.Chunks, 1)
		assert.Equal(t, "doc_"+docID, list.Chunks[0].ID)
	})

	t.Run("reindex queues a job", func(t *testing.T) {
		resp, err := env.Post("/documents/"+docID+"/reindex", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.Status)

		_, err = env.Post("/documents/"+docID+"/reindex", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 409")

		env.RunJobs()
		assert.Equal(t, "indexed", env.getDocument(t, docID).Status)
	})

	t.Run("delete removes document and chunks", func(t *testing.T) {
		resp, err := env.Delete("/documents/" + docID)
		require.NoError(t, err)

		var result struct {
			Deleted []string `json:"deleted"`
			Failed  []string `json:"failed"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Equal(t, []string{"doc_" + docID}, result.Deleted)
		assert.Empty(t, result.Failed)

		_, err = env.Get("/documents/" + docID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 404")
	})
}

func TestE2E_UploadedSource(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Post("/uploads", map[string]interface{}{
		"filename":     "faq.txt",
		"content_type": "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)

	var target struct {
		SourceKey string `json:"source_key"`
		UploadURL string `json:"upload_url"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &target))
	require.True(t, strings.HasSuffix(target.SourceKey, "/faq.txt"))

	_, err = env.Post("/documents", map[string]interface{}{
		"title":      "Not uploaded yet",
		"source_key": target.SourceKey,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")

	faq := "1. What is docindex?\nA chunking service.\n2. Does it embed?\nWhen configured.\n3. Where are chunks stored?\nIn Postgres."
	require.NoError(t, env.UploadFile(target.UploadURL, []byte(faq), "text/plain"))

	resp, err = env.Post("/documents", map[string]interface{}{
		"title":        "Docindex FAQ",
		"source_key":   target.SourceKey,
		"content_type": "text/plain",
	})
	require.NoError(t, err)
	var doc documentBody
	require.NoError(t, json.Unmarshal(resp.Data, &doc))

	env.RunJobs()

	indexed := env.getDocument(t, doc.ID)
	assert.Equal(t, "indexed", indexed.Status)
	require.NotNil(t, indexed.Chunking)
	assert.Equal(t, "faq", indexed.Chunking.Mode)
	assert.Equal(t, 3, indexed.Chunking.ChunkCount)

	list := env.listChunks(t, doc.ID)
	require.Len(t, list.Chunks, 3)
	assert.True(t, strings.HasPrefix(list.Chunks[0].Content, "1. What is docindex?"))
}

func TestE2E_ChunkPreview(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Post("/chunks/preview", map[string]interface{}{
		"document_id": "draft",
		"text":        fruitGuide(),
	})
	require.NoError(t, err)

	var preview struct {
		Mode       string `json:"mode"`
		ChunkCount int    `json:"chunk_count"`
		Chunks     []struct {
			ID string `json:"id"`
		} `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &preview))
	assert.Equal(t, "generic", preview.Mode)
	assert.Equal(t, 4, preview.ChunkCount)
	assert.Equal(t, "doc_draft_chunk_000", preview.Chunks[0].ID)

	var count int
	require.NoError(t, env.Pool.QueryRow(env.Ctx, "SELECT COUNT(*) FROM document_chunks").Scan(&count))
	assert.Zero(t, count)
}
