package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thegovlab/reboot-chat/backend/internal/model/chat"
	chatService "github.com/thegovlab/reboot-chat/backend/internal/service/chat"
	"github.com/thegovlab/reboot-chat/backend/pkg/utils"
)

// maxBodyBytes bounds the request body, conversation history included.
const maxBodyBytes = 1 << 20

// Handler serves the streaming chat endpoint.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates the chat handler. chatSvc may be nil when no model is
// configured; requests then get 503.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if h.chatSvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai chat unavailable")
		return
	}

	var req chat.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	emit := &sseEmitter{w: w, flusher: flusher}
	err := h.chatSvc.Answer(r.Context(), req, emit)
	switch {
	case err == nil:
		log.Printf("[stream] completed chat response, frames=%d", emit.frames)
	case errors.Is(err, chatService.ErrMessageRequired):
		utils.RespondError(w, http.StatusBadRequest, "message is required")
	case !emit.started:
		log.Printf("[stream] chat failed before streaming: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "an error occurred processing your message")
	default:
		// Headers are gone; ending the stream is all that is left.
		log.Printf("[stream] chat failed after %d frames: %v", emit.frames, err)
	}
}

// sseEmitter writes chat frames as SSE. Headers go out with the first frame so
// failures before it can still be reported as JSON.
type sseEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	frames  int
}

func (e *sseEmitter) start() {
	if e.started {
		return
	}
	utils.SetupSSEHeaders(e.w)
	e.w.WriteHeader(http.StatusOK)
	e.started = true
}

func (e *sseEmitter) Content(text string) error {
	return e.send(map[string]string{"content": text})
}

func (e *sseEmitter) Sources(docs []chat.SourceDocument) error {
	if docs == nil {
		docs = []chat.SourceDocument{}
	}
	return e.send(map[string][]chat.SourceDocument{"sourceDocuments": docs})
}

func (e *sseEmitter) Done() error {
	e.start()
	e.frames++
	return utils.SendSSEDone(e.w, e.flusher)
}

func (e *sseEmitter) send(payload interface{}) error {
	e.start()
	e.frames++
	return utils.SendSSEChunk(e.w, e.flusher, payload)
}
