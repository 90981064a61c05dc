package search

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thegovlab/reboot-chat/backend/internal/model/document"
	searchService "github.com/thegovlab/reboot-chat/backend/internal/service/search"
	"github.com/thegovlab/reboot-chat/backend/pkg/utils"
)

// Handler exposes the content corpus and its search index.
type Handler struct {
	documents document.Store
	searchSvc *searchService.Service
}

// New creates the search handler.
func New(documents document.Store, searchSvc *searchService.Service) *Handler {
	return &Handler{documents: documents, searchSvc: searchSvc}
}

// RegisterRoutes registers the search routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/search", h.handleSearch)
	r.Get("/documents", h.handleListDocuments)
}

type searchResponse struct {
	Query   string              `json:"query"`
	Results []searchService.Hit `json:"results"`
	Context string              `json:"context"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	hits, err := h.searchSvc.Search(r.Context(), query)
	if err != nil {
		if errors.Is(err, searchService.ErrEmptyQuery) {
			utils.RespondError(w, http.StatusBadRequest, "q query parameter is required")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if hits == nil {
		hits = []searchService.Hit{}
	}

	utils.RespondJSON(w, http.StatusOK, searchResponse{
		Query:   query,
		Results: hits,
		Context: searchService.FormatResults(hits),
	})
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.documents.List())
}
