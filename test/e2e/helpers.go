//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/docindex/internal/api/handlers"
	"github.com/cloo-solutions/docindex/internal/chunking"
	"github.com/cloo-solutions/docindex/internal/extract"
	"github.com/cloo-solutions/docindex/internal/jobs"
	"github.com/cloo-solutions/docindex/internal/repository"
	"github.com/cloo-solutions/docindex/internal/server"
	"github.com/cloo-solutions/docindex/internal/service"
	"github.com/cloo-solutions/docindex/internal/storage"
	"github.com/cloo-solutions/docindex/internal/testutil"
)

const testAPIKey = "e2e-secret"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	RustFSC    *testutil.RustFSContainer
	Pool       *pgxpool.Pool
	S3Client   *storage.S3Client
	Server     *httptest.Server
	Worker     *jobs.IndexWorker
	HTTPClient *http.Client
}

// SetupE2EEnv starts Postgres and RustFS and serves the full router. Index
// jobs are processed on demand through RunJobs instead of a polling worker.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "e2e-sources",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		HTTPClient: &http.Client{},
	}
	env.startServer(t)
	return env
}

func (e *E2ETestEnv) startServer(t *testing.T) {
	docRepo := repository.NewDocumentRepository(e.Pool)
	chunkRepo := repository.NewChunkRepository(e.Pool)
	jobRepo := repository.NewIndexJobRepository(e.Pool)

	cfg := chunking.DefaultConfig()
	cfg.MaxChars = 80
	cfg.OverlapSegments = 0
	indexer, err := service.NewIndexer(service.IndexerConfig{
		Chunking:         cfg,
		EmbedConcurrency: 1,
	}, nil, chunkRepo)
	if err != nil {
		t.Fatalf("failed to create indexer: %v", err)
	}

	docs := service.NewDocumentService(docRepo, jobRepo, repository.NewTxRunner(e.Pool), indexer,
		service.StaleConfig{Version: cfg.Version, MaxChars: cfg.MaxChars, OverlapSegments: cfg.OverlapSegments},
		service.WithObjectStorage(e.S3Client),
		service.WithChunkReader(chunkRepo),
	)
	processor := service.NewDocumentProcessor(docRepo, indexer, extract.New(), service.WithObjectReader(e.S3Client))
	e.Worker = jobs.NewIndexWorker(jobRepo, processor)

	router := server.NewRouter(server.RouterConfig{
		APIKeys:         map[string]string{testAPIKey: "e2e"},
		Health:          e.Pool,
		DocumentHandler: handlers.NewDocumentHandler(docs),
		ChunkHandler:    handlers.NewChunkHandler(indexer),
		SearchHandler:   handlers.NewSearchHandler(service.NewSearchService(chunkRepo, nil)),
	})
	e.Server = httptest.NewServer(router)
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// RunJobs processes every pending index job once.
func (e *E2ETestEnv) RunJobs() {
	if err := e.Worker.ProcessJobs(e.Ctx); err != nil {
		e.T.Fatalf("failed to process jobs: %v", err)
	}
}

// APIResponse is the envelope of every API response
type APIResponse struct {
	Status int             `json:"-"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("PUT", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.Server.URL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	apiResp.Status = resp.StatusCode

	if resp.StatusCode >= 400 {
		return &apiResp, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}
	return &apiResp, nil
}

// UploadFile uploads content to a presigned URL
func (e *E2ETestEnv) UploadFile(uploadURL string, content []byte, contentType string) error {
	req, err := http.NewRequest("PUT", uploadURL, bytes.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, body)
	}
	return nil
}
