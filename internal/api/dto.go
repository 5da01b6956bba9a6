package api

import (
	"time"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/index"
)

// AskRequest is the request body for asking the agent a question.
type AskRequest struct {
	Question string `json:"question" example:"what car did I look at last week?" validate:"required"`
}

// AskResponse is the agent's answer (aliased from the agent layer).
type AskResponse = agent.Answer

// SearchResponse wraps direct index search hits. Mode reports which search
// ran: "semantic" or "text" when embeddings were unavailable or text was
// requested explicitly.
type SearchResponse struct {
	Results []index.Hit `json:"results" validate:"required"`
	Mode    string      `json:"mode" example:"semantic" validate:"required"`
}

// DocumentListItem is a lightweight item in a list response.
type DocumentListItem struct {
	Path       string    `json:"path" example:"notes/trip.md"`
	Title      string    `json:"title" example:"Trip"`
	Tags       []string  `json:"tags,omitempty" example:"travel,2024"`
	Size       int64     `json:"size" example:"1204"`
	ModifiedAt time.Time `json:"modified_at"`
}

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []DocumentListItem `json:"documents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// TagCount is one tag and how many documents carry it.
type TagCount struct {
	Tag   string `json:"tag" example:"travel"`
	Count int    `json:"count" example:"7"`
}

// TagsResponse wraps the tag inventory.
type TagsResponse struct {
	Tags  []TagCount `json:"tags" validate:"required"`
	Total int        `json:"total" example:"12" validate:"required"`
}

// StatusResponse reports index size and which search mode queries will use.
type StatusResponse struct {
	Index              index.Stats `json:"index"`
	EmbeddingAvailable bool        `json:"embedding_available" example:"true"`
	SearchMode         string      `json:"search_mode" example:"semantic"`
}

// RebuildResponse acknowledges an asynchronous full rebuild.
type RebuildResponse struct {
	Status string `json:"status" example:"rebuild started"`
}
