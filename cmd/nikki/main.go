// Package main is the Nikki CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/nikki/internal/cli"
	"github.com/hyperjump/nikki/internal/config"
	"github.com/hyperjump/nikki/internal/embedding"
	"github.com/hyperjump/nikki/internal/importer"
	"github.com/hyperjump/nikki/internal/indexer"
	"github.com/hyperjump/nikki/internal/jobs"
	"github.com/hyperjump/nikki/internal/keyword"
	"github.com/hyperjump/nikki/internal/llm"
	"github.com/hyperjump/nikki/internal/models"
	"github.com/hyperjump/nikki/internal/rag"
	"github.com/hyperjump/nikki/internal/server"
	"github.com/hyperjump/nikki/internal/storage"
	"github.com/hyperjump/nikki/internal/summary"
	"github.com/hyperjump/nikki/internal/vector"
	"github.com/hyperjump/nikki/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/nikki/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys come from the environment; a .env in the working directory is
	// picked up for development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "add":
		runAdd()
	case "list":
		runList()
	case "search":
		runSearch()
	case "chat":
		runChat()
	case "summarize":
		runSummarize()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("nikki version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	importCtx, importCancel := context.WithCancel(context.Background())
	defer importCancel()
	var importWatcher *importer.Watcher
	if len(cfg.Import.Directories) > 0 {
		ingester := importer.NewIngester(components.Storage, components.Indexer)
		importOpts := []importer.WatcherOption{importer.WithLogger(logger)}
		importWatcher = importer.NewWatcher(ingester, cfg.Import.Directories, cfg.Import.Extensions, importOpts...)
		if err := importWatcher.Start(importCtx); err != nil {
			logger.Fatal("Failed to start import watcher", zap.Error(err))
		}
		logger.Info("import watcher started", zap.Strings("directories", cfg.Import.Directories))
	}

	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	components.Coordinator.Start(jobCtx)

	srv := server.NewServer(
		components.Storage,
		components.Indexer,
		components.Answerer,
		components.Coordinator,
		components.KeywordIndex,
		components.VectorIndex,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if importWatcher != nil {
		importWatcher.Stop()
	}
	components.Coordinator.Stop()
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.VectorIndex.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	title := fs.String("title", "", "entry title (required)")
	_ = fs.Parse(os.Args[2:])

	content := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if *title == "" || content == "" {
		fmt.Println("Usage: nikki add --title \"A title\" <entry text>")
		os.Exit(1)
	}
	body, _ := json.Marshal(models.EntryInput{Title: *title, Content: content})
	var created struct {
		models.JournalEntry
		ChunksAdded int    `json:"chunks_added"`
		IndexError  string `json:"index_error"`
	}
	if err := postJSON(*serverURL+"/api/v1/entries", body, http.StatusCreated, &created); err != nil {
		fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Entry created: %s (%d chunk(s) indexed)\n", created.ID, created.ChunksAdded)
	if created.IndexError != "" {
		fmt.Printf("Warning: indexing failed: %s\n", created.IndexError)
	}
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	limit := fs.Int("limit", 20, "number of entries")
	offset := fs.Int("offset", 0, "offset for paging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	var entries []*models.JournalEntry
	path := fmt.Sprintf("%s/api/v1/entries?limit=%d&offset=%d", *serverURL, *limit, *offset)
	if err := getJSON(path, &entries); err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteEntries(os.Stdout, entries, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	limit := fs.Int("limit", 10, "number of results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: nikki search [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	var response struct {
		Query   string `json:"query"`
		Results []struct {
			Entry *models.JournalEntry `json:"entry"`
			Score float64              `json:"score"`
		} `json:"results"`
		Total int `json:"total"`
	}
	path := fmt.Sprintf("%s/api/v1/entries/search?q=%s&limit=%d", *serverURL, url.QueryEscape(query), *limit)
	if err := getJSON(path, &response); err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(response)
		return
	}
	fmt.Printf("\nFound %d result(s) for %q\n\n", response.Total, response.Query)
	entries := make([]*models.JournalEntry, 0, len(response.Results))
	for _, r := range response.Results {
		entries = append(entries, r.Entry)
	}
	_ = cli.WriteEntries(os.Stdout, entries, cli.OutputText)
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	topK := fs.Int("top-k", 0, "number of chunks to retrieve (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: nikki chat [flags] <question>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	body, _ := json.Marshal(map[string]interface{}{"query": query, "top_k": *topK})
	var result models.ChatResult
	if err := postJSON(*serverURL+"/api/v1/chat", body, http.StatusOK, &result); err != nil {
		fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteChatResult(os.Stdout, &result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSummarize() {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	period := fs.String("period", "daily", "summary period: daily, weekly, or monthly")
	wait := fs.Bool("wait", true, "poll until the job finishes")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	body, _ := json.Marshal(map[string]string{"period": *period})
	var submitted struct {
		JobID string `json:"job_id"`
		State string `json:"state"`
	}
	if err := postJSON(*serverURL+"/api/v1/summaries", body, http.StatusAccepted, &submitted); err != nil {
		fmt.Fprintf(os.Stderr, "Summarize failed: %v\n", err)
		os.Exit(1)
	}
	if !*wait {
		fmt.Printf("Job submitted: %s\n", submitted.JobID)
		return
	}

	var job jobView
	deadline := time.After(2 * time.Minute)
	for {
		if err := getJSON(*serverURL+"/api/v1/summaries/jobs/"+submitted.JobID, &job); err != nil {
			fmt.Fprintf(os.Stderr, "Poll failed: %v\n", err)
			os.Exit(1)
		}
		if models.JobState(job.State).Terminal() {
			break
		}
		select {
		case <-deadline:
			fmt.Fprintf(os.Stderr, "Job %s still %s; giving up\n", submitted.JobID, job.State)
			os.Exit(1)
		case <-time.After(500 * time.Millisecond):
		}
	}
	model := &models.Job{
		ID:        job.JobID,
		Period:    models.Period(job.Period),
		StartDate: job.StartDate,
		EndDate:   job.EndDate,
		State:     models.JobState(job.State),
		Result:    job.Result,
		Error:     job.Error,
	}
	if err := cli.WriteJob(os.Stdout, model, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if model.State == models.JobFailed {
		os.Exit(1)
	}
}

// jobView is the shape of GET /api/v1/summaries/jobs/{id}.
type jobView struct {
	JobID     string           `json:"job_id"`
	Period    string           `json:"period"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	State     string           `json:"state"`
	Result    string           `json:"result"`
	Error     *models.JobError `json:"error"`
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: nikki import [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ingester := importer.NewIngester(components.Storage, components.Indexer)
	entry, err := ingester.IngestFile(context.Background(), path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %s as entry %s\n", path, entry.ID)
}

// statusView is the shape of GET /api/v1/status.
type statusView struct {
	Entries         int64                  `json:"entries"`
	Chunks          int64                  `json:"chunks"`
	Summaries       int64                  `json:"summaries"`
	VectorIndexSize int                    `json:"vector_index_size"`
	Config          map[string]interface{} `json:"config"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusView
	if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("entries:            %d   # journal entries stored\n", status.Entries)
		fmt.Printf("chunks:             %d   # text chunks indexed for retrieval\n", status.Chunks)
		fmt.Printf("summaries:          %d   # cached period summaries\n", status.Summaries)
		fmt.Printf("vector_index_size:  %d   # vectors in semantic index\n", status.VectorIndexSize)
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"embedding_dimensions", "chunk_size", "chunk_overlap", "database_path", "vector_index_path", "keyword_index_path"} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-20s%v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func postJSON(endpoint string, body []byte, wantStatus int, out interface{}) error {
	resp, err := http.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func getJSON(endpoint string, out interface{}) error {
	resp, err := http.Get(endpoint)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	VectorIndex  vector.VectorIndex
	KeywordIndex keyword.KeywordIndex
	Indexer      *indexer.Indexer
	Generator    llm.Generator
	Answerer     *rag.Answerer
	Coordinator  *jobs.Coordinator
}

func (c *Components) Close() {
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder
	if cfg.Embedding.Mock {
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		logger.Info("using mock embedder", zap.Int("dimensions", cfg.Embedding.Dimensions))
	} else {
		openAI, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     os.Getenv(cfg.Embedding.APIKeyEnv),
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		embedder = openAI
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}

	vectorIndex, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := vectorIndex.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}
	logger.Info("vector index initialized", zap.Int("size", vectorIndex.Size()))

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	idxOpts := []indexer.IndexerOption{}
	if debug {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	idx := indexer.NewIndexer(store, embedder, vectorIndex, keywordIndex, chunker, cfg.Storage.VectorIndexPath, idxOpts...)

	generator, err := llm.NewOpenAIGenerator(llm.OpenAIConfig{
		APIKey:  os.Getenv(cfg.LLM.APIKeyEnv),
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize language model: %w", err)
	}

	ragOpts := []rag.AnswererOption{}
	sumOpts := []summary.SummarizerOption{}
	coordOpts := []jobs.CoordinatorOption{jobs.WithLogger(logger)}
	if debug {
		ragOpts = append(ragOpts, rag.WithLogger(logger))
		sumOpts = append(sumOpts, summary.WithLogger(logger))
	}
	answerer := rag.NewAnswerer(store, embedder, vectorIndex, generator,
		cfg.Chat.DefaultTopK, cfg.Chat.MaxTopK, ragOpts...)
	summarizer := summary.NewSummarizer(store, generator, sumOpts...)
	coordinator := jobs.NewCoordinator(summarizer, cfg.Summarize.Workers, cfg.Summarize.QueueSize, coordOpts...)

	return &Components{
		Storage:      store,
		Embedder:     embedder,
		VectorIndex:  vectorIndex,
		KeywordIndex: keywordIndex,
		Indexer:      idx,
		Generator:    generator,
		Answerer:     answerer,
		Coordinator:  coordinator,
	}, nil
}

func printUsage() {
	fmt.Println(`nikki - personal journal with summaries and grounded chat

Usage:
  nikki server [flags]                 Start the HTTP server
  nikki add --title T <text>           Create a journal entry
  nikki list [flags]                   List recent entries
  nikki search [flags] <query>         Keyword search over entries
  nikki chat [flags] <question>        Ask a question answered from your journal
  nikki summarize [flags]              Request a period summary and wait for it
  nikki import [flags] <file>          Import a text file as an entry
  nikki status [flags]                 Show storage/index status
  nikki version                        Show version
  nikki help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/nikki/config.yaml)
  --debug            Enable debug logging

Client Flags (add, list, search, chat, summarize, status):
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Summarize Flags:
  --period string    daily, weekly, or monthly (default: daily)
  --wait             Poll until the job finishes (default: true)

Examples:
  nikki server
  nikki add --title "Run" Went for a 5k run, felt great
  nikki chat How was my running this week?
  nikki summarize --period weekly
  nikki search pasta
  nikki status --output json`)
}
