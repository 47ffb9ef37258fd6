package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/knowledge"
)

// Search defaults for POST /v1/knowledge/search.
const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.5
)

func (s *Server) ingestText(w http.ResponseWriter, r *http.Request) {
	var req knowledge.TextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	src, err := s.knowledge.IngestText(r.Context(), req)
	s.writeSource(w, src, err)
}

func (s *Server) ingestURL(w http.ResponseWriter, r *http.Request) {
	var req knowledge.URLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	src, err := s.knowledge.IngestURL(r.Context(), req)
	s.writeSource(w, src, err)
}

func (s *Server) ingestFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing file part: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	src, err := s.knowledge.IngestFile(r.Context(), knowledge.FileRequest{
		Owner: knowledge.Owner{
			UserID:    r.FormValue("user_id"),
			SessionID: r.FormValue("session_id"),
			BotID:     r.FormValue("bot_id"),
		},
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	s.writeSource(w, src, err)
}

func (s *Server) writeSource(w http.ResponseWriter, src *domain.KnowledgeSource, err error) {
	if err != nil {
		s.logger.Warn("ingestion rejected", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, src)
}

func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.knowledge.Source(r.Context(), chi.URLParam(r, "sourceID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (s *Server) deleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.knowledge.Delete(r.Context(), chi.URLParam(r, "sourceID")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reindexSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sourceID")
	if err := s.knowledge.ReindexAsync(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"source_id": id, "status": "indexing"})
}

type searchRequest struct {
	Query         string   `json:"query"`
	BotID         string   `json:"bot_id,omitempty"`
	SourceIDs     []string `json:"source_ids,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	MinSimilarity *float64 `json:"min_similarity,omitempty"`
}

type searchResponse struct {
	Results []domain.ScoredChunk `json:"results"`
}

// searchKnowledge searches the given sources, or the ready sources of bot_id when none are given.
func (s *Server) searchKnowledge(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	minSim := DefaultMinSimilarity
	if req.MinSimilarity != nil {
		minSim = *req.MinSimilarity
	}

	ids := req.SourceIDs
	if len(ids) == 0 && req.BotID != "" {
		var err error
		ids, err = s.searcher.ReadySources(r.Context(), req.BotID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	}

	hits, err := s.searcher.Retrieve(r.Context(), req.Query, ids, topK, minSim)
	if err != nil {
		s.logger.Error("knowledge search failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	if hits == nil {
		hits = []domain.ScoredChunk{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: hits})
}
