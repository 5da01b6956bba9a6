package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/embedding"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/tools"
)

// Search modes accepted by GET /api/search.
const (
	modeSemantic = "semantic"
	modeText     = "text"
)

const defaultListLimit = 100

// Handler holds API route handlers.
type Handler struct {
	ix       *index.Index
	registry *tools.Registry
	agent    *agent.Orchestrator
	embedder embedding.Service

	// onRebuilt, when non-nil, runs after an async full rebuild succeeds.
	onRebuilt func()
}

// NewHandler creates a new Handler.
func NewHandler(ix *index.Index, registry *tools.Registry, agent *agent.Orchestrator, embedder embedding.Service, onRebuilt func()) *Handler {
	return &Handler{ix: ix, registry: registry, agent: agent, embedder: embedder, onRebuilt: onRebuilt}
}

// docPath extracts the document path from the URL (everything after
// /api/documents/). Supports encoded slashes from OpenAPI clients
// (e.g. topics%2Fnote.md).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Ask handles POST /api/ask.
//
//	@Summary		Ask the agent a question about the indexed documents
//	@Tags			agent
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AskRequest	true	"Question to answer"
//	@Success		200		{object}	AskResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ask [post]
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("question is required"))
		return
	}

	ans, err := h.agent.Ask(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, apperr.ErrUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody("language model is not configured"))
			return
		}
		slog.Error("ask failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// AskStream handles GET /api/ask/stream.
//
//	@Summary		Ask the agent a question, streaming progress as SSE
//	@Tags			agent
//	@Produce		text/event-stream
//	@Param			q	query	string	true	"Question to answer"
//	@Success		200	"Stream of tool_start, tool_result, response_* events"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ask/stream [get]
func (h *Handler) AskStream(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("q"))
	if question == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The channel closes when the turn finishes or the request context is
	// canceled; either way the handler just drains.
	for ev := range h.agent.AskStream(r.Context(), question) {
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("event encode failed", slog.String("error", err.Error()))
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		flusher.Flush()
	}
}

// Search handles GET /api/search.
//
//	@Summary		Search the index directly, bypassing the agent
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			mode	query		string	false	"Search mode"	Enums(semantic, text)
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	mode := r.URL.Query().Get("mode")
	switch mode {
	case "":
		mode = modeSemantic
	case modeSemantic, modeText:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("mode must be semantic or text"))
		return
	}
	if mode == modeSemantic && !h.embedder.Available(r.Context()) {
		mode = modeText
	}

	var hits []index.Hit
	if mode == modeSemantic {
		var err error
		hits, err = h.ix.VectorSearch(r.Context(), query, limit, 0)
		if err != nil {
			slog.Error("search failed", slog.String("query", query), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
	} else {
		hits = h.ix.SubstringSearch(query, false, limit)
	}
	if hits == nil {
		hits = []index.Hit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits, Mode: mode})
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List indexed documents with optional filtering
//	@Tags			documents
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(modified_at, title, path)
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	tag := q.Get("tag")
	sortBy := q.Get("sort")
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	docs := h.ix.All()
	if tag != "" {
		filtered := docs[:0]
		for _, d := range docs {
			for _, t := range d.Tags {
				if t == tag {
					filtered = append(filtered, d)
					break
				}
			}
		}
		docs = filtered
	}

	switch sortBy {
	case "title":
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].Title < docs[j].Title })
	case "path":
		// All() already returns path order.
	default:
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].ModifiedAt.After(docs[j].ModifiedAt) })
	}

	total := len(docs)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	items := make([]DocumentListItem, 0, end-offset)
	for _, d := range docs[offset:end] {
		items = append(items, DocumentListItem{
			Path:       d.Path,
			Title:      d.Title,
			Tags:       d.Tags,
			Size:       d.Size,
			ModifiedAt: d.ModifiedAt,
		})
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: total})
}

// GetDocument handles GET /api/documents/*. It serves the same payload the
// agent's detail tool produces, so API clients and the model see one shape.
//
//	@Summary		Get a single document with its connection summary
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	res, err := h.registry.Execute(r.Context(), "get_document_details", map[string]any{"path": path})
	if err != nil {
		slog.Error("document details failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if res.Found == 0 {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Tags handles GET /api/tags.
//
//	@Summary		List all tags with document counts
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	counts := h.ix.Tags()
	tags := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		tags = append(tags, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags, Total: len(tags)})
}

// Status handles GET /api/status.
//
//	@Summary		Report index counts and search capability
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	available := h.embedder.Available(r.Context())
	mode := modeText
	if available {
		mode = modeSemantic
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Index:              h.ix.Stats(),
		EmbeddingAvailable: available,
		SearchMode:         mode,
	})
}

// Rebuild handles POST /api/index/rebuild.
//
//	@Summary		Start a full index rebuild in the background
//	@Tags			index
//	@Produce		json
//	@Success		202	{object}	RebuildResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.ix.Stats().Building {
		writeJSON(w, http.StatusConflict, errorBody("rebuild already in progress"))
		return
	}
	// Detached from the request context so a dropped client does not abort
	// the build. A concurrent build started in the gap is a logged no-op.
	go func() {
		if err := h.ix.BuildFull(context.Background()); err != nil {
			slog.Error("background rebuild failed", slog.String("error", err.Error()))
			return
		}
		if h.onRebuilt != nil {
			h.onRebuilt()
		}
	}()
	writeJSON(w, http.StatusAccepted, RebuildResponse{Status: "rebuild started"})
}

// Reconcile handles POST /api/index/reconcile.
//
//	@Summary		Reconcile the index against the vault now
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	index.ReconcileStats
//	@Security		BearerAuth
//	@Router			/index/reconcile [post]
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ix.Reconcile(r.Context())
	if err != nil {
		slog.Error("reconcile failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
