package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/nikki/internal/apperr"
	"github.com/hyperjump/nikki/internal/models"
)

const defaultListLimit = 50

type createEntryResponse struct {
	*models.JournalEntry
	ChunksAdded int    `json:"chunks_added"`
	IndexError  string `json:"index_error,omitempty"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var input models.EntryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Content) == "" {
		s.respondError(w, http.StatusBadRequest, "title and content are required")
		return
	}
	now := time.Now().UTC()
	entry := &models.JournalEntry{
		ID:        uuid.New().String(),
		Title:     input.Title,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.CreateEntry(r.Context(), entry); err != nil {
		s.logger.Error("create entry failed", zap.Error(err))
		s.respondAppError(w, err)
		return
	}

	resp := createEntryResponse{JournalEntry: entry}
	added, err := s.indexer.IndexEntry(r.Context(), entry.ID, entry.Title, entry.Content, now.Format("2006-01-02"))
	if err != nil {
		// The entry stands; indexing can be retried via POST /api/v1/index.
		s.logger.Warn("entry created but indexing failed",
			zap.String("entry_id", entry.ID), zap.Error(err))
		resp.IndexError = err.Error()
	} else {
		resp.ChunksAdded = added
	}
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultListLimit)
	entries, err := s.storage.ListEntries(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list entries failed", zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.JournalEntry{}
	}
	s.respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.storage.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var update models.EntryUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry, err := s.storage.GetEntry(r.Context(), id)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	if update.Title != nil {
		entry.Title = *update.Title
	}
	if update.Content != nil {
		entry.Content = *update.Content
	}
	// Edits do not propagate to the vector index; chunks keep the text the
	// entry had when it was indexed.
	if err := s.storage.UpdateEntry(r.Context(), entry); err != nil {
		s.logger.Error("update entry failed", zap.String("id", id), zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.storage.DeleteEntry(r.Context(), id); err != nil {
		s.respondAppError(w, err)
		return
	}
	if s.keywordIndex != nil {
		if err := s.keywordIndex.Delete(r.Context(), id); err != nil {
			s.logger.Warn("keyword index delete failed", zap.String("id", id), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type searchResult struct {
	Entry *models.JournalEntry `json:"entry"`
	Score float64              `json:"score"`
}

func (s *Server) handleSearchEntries(w http.ResponseWriter, r *http.Request) {
	if s.keywordIndex == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword search not enabled")
		return
	}
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		s.respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit := queryInt(r, "limit", defaultListLimit)
	hits, err := s.keywordIndex.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	results := make([]searchResult, 0, len(hits))
	for _, hit := range hits {
		entry, err := s.storage.GetEntry(r.Context(), hit.ID)
		if err != nil {
			continue
		}
		results = append(results, searchResult{Entry: entry, Score: hit.Score})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
		"total":   len(results),
	})
}

type indexRequest struct {
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Date     string `json:"date"`
}

func (s *Server) handleIndexEntry(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceID == "" || req.Title == "" || req.Content == "" || req.Date == "" {
		s.respondError(w, http.StatusBadRequest, "source_id, title, content, and date are required")
		return
	}
	added, err := s.indexer.IndexEntry(r.Context(), req.SourceID, req.Title, req.Content, req.Date)
	if err != nil {
		s.logger.Error("indexing failed", zap.String("source_id", req.SourceID), zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "indexed",
		"chunks_added": added,
		"source_id":    req.SourceID,
	})
}

type chatRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.answerer.Answer(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.logger.Error("chat failed", zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	if result.Sources == nil {
		result.Sources = []models.ChatSource{}
	}
	s.respondJSON(w, http.StatusOK, result)
}

type summaryRequest struct {
	Period string `json:"period"`
}

func (s *Server) handleSubmitSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := s.coordinator.Submit(req.Period)
	if err != nil {
		s.logger.Warn("summary submission rejected", zap.String("period", req.Period), zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": id,
		"state":  string(models.JobPending),
	})
}

type jobResponse struct {
	JobID     string           `json:"job_id"`
	Period    models.Period    `json:"period"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	State     models.JobState  `json:"state"`
	Result    string           `json:"result,omitempty"`
	Error     *models.JobError `json:"error,omitempty"`
}

func (s *Server) handlePollSummaryJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.coordinator.Poll(chi.URLParam(r, "id"))
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, jobResponse{
		JobID:     job.ID,
		Period:    job.Period,
		StartDate: job.StartDate,
		EndDate:   job.EndDate,
		State:     job.State,
		Result:    job.Result,
		Error:     job.Error,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entryCount, err := s.storage.CountEntries(ctx)
	if err != nil {
		s.logger.Error("status: count entries failed", zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	summaryCount, err := s.storage.CountSummaries(ctx)
	if err != nil {
		s.logger.Error("status: count summaries failed", zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries":           entryCount,
		"chunks":            chunkCount,
		"summaries":         summaryCount,
		"vector_index_size": s.vectorIndex.Size(),
		"config": map[string]interface{}{
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"chunk_size":           s.config.Chunking.ChunkSize,
			"chunk_overlap":        s.config.Chunking.ChunkOverlap,
			"database_path":        s.config.Storage.DatabasePath,
			"vector_index_path":    s.config.Storage.VectorIndexPath,
			"keyword_index_path":   s.config.Storage.KeywordIndexPath,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// respondAppError maps an error's kind to an HTTP status.
func (s *Server) respondAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.Kind(err) {
	case "validation", "configuration":
		status = http.StatusBadRequest
	case "not_found":
		status = http.StatusNotFound
	case "external_service":
		status = http.StatusBadGateway
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
