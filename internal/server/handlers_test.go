package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/nikki/internal/config"
	"github.com/hyperjump/nikki/internal/embedding"
	"github.com/hyperjump/nikki/internal/indexer"
	"github.com/hyperjump/nikki/internal/jobs"
	"github.com/hyperjump/nikki/internal/keyword"
	"github.com/hyperjump/nikki/internal/llm"
	"github.com/hyperjump/nikki/internal/models"
	"github.com/hyperjump/nikki/internal/rag"
	"github.com/hyperjump/nikki/internal/storage"
	"github.com/hyperjump/nikki/internal/summary"
	"github.com/hyperjump/nikki/internal/vector"
)

type testServer struct {
	srv       *httptest.Server
	generator *llm.MockGenerator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "nikki.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { kwIndex.Close() })

	embedder := embedding.NewMockEmbedder(16)
	vecIndex, err := vector.NewMemoryIndex(16)
	if err != nil {
		t.Fatal(err)
	}
	chunker, err := indexer.NewChunker(100, 16)
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(store, embedder, vecIndex, kwIndex, chunker, "")
	gen := &llm.MockGenerator{Response: "A generated summary of your journal."}
	answerer := rag.NewAnswerer(store, embedder, vecIndex, gen, 5, 20)
	coordinator := jobs.NewCoordinator(summary.NewSummarizer(store, gen), 2, 8)
	coordinator.Start(context.Background())
	t.Cleanup(coordinator.Stop)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	s := NewServer(store, idx, answerer, coordinator, kwIndex, vecIndex, cfg, zap.NewNop())
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, generator: gen}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var fields map[string]json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&fields)
	return resp, fields
}

func stringField(t *testing.T, fields map[string]json.RawMessage, key string) string {
	t.Helper()
	var v string
	if err := json.Unmarshal(fields[key], &v); err != nil {
		t.Fatalf("field %q: %v (raw %s)", key, err, fields[key])
	}
	return v
}

func TestCreateEntry(t *testing.T) {
	ts := newTestServer(t)
	resp, fields := ts.do(t, http.MethodPost, "/api/v1/entries",
		map[string]string{"title": "Run", "content": "Went for a 5k run, felt great"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	id := stringField(t, fields, "id")
	if id == "" {
		t.Fatal("entry must get an ID")
	}
	var added int
	if err := json.Unmarshal(fields["chunks_added"], &added); err != nil || added != 1 {
		t.Errorf("chunks_added: got %s", fields["chunks_added"])
	}
	if _, ok := fields["index_error"]; ok {
		t.Error("index_error must be absent on success")
	}

	resp, fields = ts.do(t, http.MethodGet, "/api/v1/entries/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status: got %d", resp.StatusCode)
	}
	if stringField(t, fields, "title") != "Run" {
		t.Errorf("title: got %s", fields["title"])
	}
}

func TestCreateEntryValidation(t *testing.T) {
	ts := newTestServer(t)
	for _, body := range []map[string]string{
		{},
		{"title": "Run"},
		{"content": "text"},
		{"title": "  ", "content": "text"},
	} {
		resp, _ := ts.do(t, http.MethodPost, "/api/v1/entries", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %v: got %d", body, resp.StatusCode)
		}
	}
}

func TestGetEntryNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, http.MethodGet, "/api/v1/entries/no-such-id", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d", resp.StatusCode)
	}
}

func TestUpdateAndDeleteEntry(t *testing.T) {
	ts := newTestServer(t)
	_, fields := ts.do(t, http.MethodPost, "/api/v1/entries",
		map[string]string{"title": "Draft", "content": "first version"})
	id := stringField(t, fields, "id")

	resp, fields := ts.do(t, http.MethodPut, "/api/v1/entries/"+id,
		map[string]string{"content": "second version"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status: got %d", resp.StatusCode)
	}
	if stringField(t, fields, "title") != "Draft" {
		t.Error("title must be unchanged by a content-only update")
	}
	if stringField(t, fields, "content") != "second version" {
		t.Errorf("content: got %s", fields["content"])
	}

	resp, _ = ts.do(t, http.MethodDelete, "/api/v1/entries/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status: got %d", resp.StatusCode)
	}
	resp, _ = ts.do(t, http.MethodGet, "/api/v1/entries/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: got %d", resp.StatusCode)
	}
	resp, _ = ts.do(t, http.MethodDelete, "/api/v1/entries/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: got %d", resp.StatusCode)
	}
}

func TestSearchEntries(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/entries",
		map[string]string{"title": "Run", "content": "Went for a 5k run"})
	ts.do(t, http.MethodPost, "/api/v1/entries",
		map[string]string{"title": "Dinner", "content": "Cooked pasta"})

	resp, fields := ts.do(t, http.MethodGet, "/api/v1/entries/search?q=run", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var total int
	if err := json.Unmarshal(fields["total"], &total); err != nil || total != 1 {
		t.Errorf("total: got %s", fields["total"])
	}

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/entries/search", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing q: got %d", resp.StatusCode)
	}
}

func TestIndexEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, fields := ts.do(t, http.MethodPost, "/api/v1/index", map[string]string{
		"source_id": "ext-1",
		"title":     "Imported",
		"content":   "Text that came from somewhere else",
		"date":      "2024-03-15",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if stringField(t, fields, "status") != "indexed" {
		t.Errorf("status field: got %s", fields["status"])
	}
	if stringField(t, fields, "source_id") != "ext-1" {
		t.Errorf("source_id: got %s", fields["source_id"])
	}
	var added int
	if err := json.Unmarshal(fields["chunks_added"], &added); err != nil || added < 1 {
		t.Errorf("chunks_added: got %s", fields["chunks_added"])
	}

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/index",
		map[string]string{"source_id": "ext-2", "title": "Missing bits"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("incomplete body: got %d", resp.StatusCode)
	}
}

func TestChat(t *testing.T) {
	ts := newTestServer(t)
	ts.generator.Response = "You ran 5k and felt great."
	ts.do(t, http.MethodPost, "/api/v1/entries",
		map[string]string{"title": "Run", "content": "Went for a 5k run, felt great"})

	resp, fields := ts.do(t, http.MethodPost, "/api/v1/chat",
		map[string]interface{}{"query": "How was my run?", "top_k": 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if stringField(t, fields, "answer") != "You ran 5k and felt great." {
		t.Errorf("answer: got %s", fields["answer"])
	}
	var sources []models.ChatSource
	if err := json.Unmarshal(fields["sources"], &sources); err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 1 || sources[0].Date != time.Now().UTC().Format("2006-01-02") {
		t.Errorf("sources: got %+v", sources)
	}

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"query": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty query: got %d", resp.StatusCode)
	}
}

func TestSummaryJobFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/entries",
		map[string]string{"title": "Run", "content": "Went for a 5k run"})

	resp, fields := ts.do(t, http.MethodPost, "/api/v1/summaries",
		map[string]string{"period": "daily"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status: got %d", resp.StatusCode)
	}
	jobID := stringField(t, fields, "job_id")
	if jobID == "" {
		t.Fatal("job_id must be returned")
	}
	if stringField(t, fields, "state") != "pending" {
		t.Errorf("initial state: got %s", fields["state"])
	}

	deadline := time.After(5 * time.Second)
	for {
		resp, fields = ts.do(t, http.MethodGet, "/api/v1/summaries/jobs/"+jobID, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("poll status: got %d", resp.StatusCode)
		}
		state := stringField(t, fields, "state")
		if state == "succeeded" {
			break
		}
		if state == "failed" {
			t.Fatalf("job failed: %s", fields["error"])
		}
		select {
		case <-deadline:
			t.Fatalf("job stuck in state %s", state)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if stringField(t, fields, "result") != ts.generator.Response {
		t.Errorf("result: got %s", fields["result"])
	}
}

func TestSummaryInvalidPeriod(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, http.MethodPost, "/api/v1/summaries",
		map[string]string{"period": "yearly"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d", resp.StatusCode)
	}
}

func TestPollUnknownJob(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, http.MethodGet, "/api/v1/summaries/jobs/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d", resp.StatusCode)
	}
}

func TestStatusAndHealth(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		ts.do(t, http.MethodPost, "/api/v1/entries",
			map[string]string{"title": fmt.Sprintf("Entry %d", i), "content": "some words here"})
	}

	resp, fields := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var entries int
	if err := json.Unmarshal(fields["entries"], &entries); err != nil || entries != 3 {
		t.Errorf("entries: got %s", fields["entries"])
	}
	var vecSize int
	if err := json.Unmarshal(fields["vector_index_size"], &vecSize); err != nil || vecSize != 3 {
		t.Errorf("vector_index_size: got %s", fields["vector_index_size"])
	}

	resp, fields = ts.do(t, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: got %d", resp.StatusCode)
	}
	if stringField(t, fields, "status") != "ok" {
		t.Errorf("health body: got %s", fields["status"])
	}
}
