package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/thegovlab/reboot-chat/backend/internal/metrics"
	"github.com/thegovlab/reboot-chat/backend/internal/model/chat"
	"github.com/thegovlab/reboot-chat/backend/internal/service/search"
)

// DefaultHistoryLimit caps how many prior conversation entries reach the model.
const DefaultHistoryLimit = 10

var (
	ErrMessageRequired   = errors.New("message is required")
	ErrGeneratorRequired = errors.New("answer generator is required")
)

// Searcher retrieves corpus context for a question.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Hit, error)
}

// Generator produces the model answer. ai.Service satisfies it.
type Generator interface {
	StreamingEnabled() bool
	GenerateAnswer(ctx context.Context, history []chat.Message, question, retrieved string) (*schema.Message, error)
	StreamAnswer(ctx context.Context, history []chat.Message, question, retrieved string) (*schema.StreamReader[*schema.Message], error)
}

// Emitter receives the frames of one exchange in wire order.
type Emitter interface {
	Content(text string) error
	Sources(docs []chat.SourceDocument) error
	Done() error
}

// Service answers one chat request: search, prompt, stream, then sources.
type Service struct {
	searcher     Searcher
	generator    Generator
	historyLimit int
}

// NewService wires the exchange pipeline. searcher may be nil, in which case
// the model answers without retrieved context.
func NewService(searcher Searcher, generator Generator, historyLimit int) (*Service, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if historyLimit < 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Service{searcher: searcher, generator: generator, historyLimit: historyLimit}, nil
}

// Answer runs the exchange for req and writes every frame to emit. Errors
// from the model are returned as is; the caller decides whether a response
// has already started.
func (s *Service) Answer(ctx context.Context, req chat.Request, emit Emitter) error {
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return ErrMessageRequired
	}

	hits := s.retrieve(ctx, question)
	retrieved := search.FormatResults(hits)
	history := History(req.Conversation, s.historyLimit)

	var err error
	if s.generator.StreamingEnabled() {
		err = s.stream(ctx, history, question, retrieved, emit)
	} else {
		err = s.generate(ctx, history, question, retrieved, emit)
	}
	if err != nil {
		metrics.ChatRequests.WithLabelValues("error").Inc()
		return err
	}

	if err := emit.Sources(search.SourceDocuments(hits)); err != nil {
		metrics.ChatRequests.WithLabelValues("aborted").Inc()
		return fmt.Errorf("emit sources: %w", err)
	}
	metrics.StreamFrames.WithLabelValues("sourceDocuments").Inc()

	if err := emit.Done(); err != nil {
		metrics.ChatRequests.WithLabelValues("aborted").Inc()
		return fmt.Errorf("emit done: %w", err)
	}
	metrics.StreamFrames.WithLabelValues("done").Inc()
	metrics.ChatRequests.WithLabelValues("ok").Inc()
	return nil
}

func (s *Service) retrieve(ctx context.Context, question string) []search.Hit {
	if s.searcher == nil {
		return nil
	}
	hits, err := s.searcher.Search(ctx, question)
	if errors.Is(err, search.ErrEmptyQuery) {
		return nil
	}
	if err != nil {
		log.Printf("[chat] search failed, answering without context: %v", err)
		return nil
	}
	return hits
}

func (s *Service) generate(ctx context.Context, history []chat.Message, question, retrieved string, emit Emitter) error {
	response, err := s.generator.GenerateAnswer(ctx, history, question, retrieved)
	if err != nil {
		return fmt.Errorf("generate answer: %w", err)
	}
	if err := emit.Content(response.Content); err != nil {
		return fmt.Errorf("emit content: %w", err)
	}
	metrics.StreamFrames.WithLabelValues("content").Inc()
	return nil
}

func (s *Service) stream(ctx context.Context, history []chat.Message, question, retrieved string, emit Emitter) error {
	reader, err := s.generator.StreamAnswer(ctx, history, question, retrieved)
	if err != nil {
		return fmt.Errorf("stream answer: %w", err)
	}
	defer reader.Close()

	for {
		chunk, recvErr := reader.Recv()
		if errors.Is(recvErr, io.EOF) {
			return nil
		}
		if recvErr != nil {
			return fmt.Errorf("receive chunk: %w", recvErr)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		if err := emit.Content(chunk.Content); err != nil {
			return fmt.Errorf("emit content: %w", err)
		}
		metrics.StreamFrames.WithLabelValues("content").Inc()
	}
}

// History drops the trailing bot placeholder the client appends for the
// pending answer and keeps at most the last limit entries. limit 0 keeps none.
func History(conversation []chat.Message, limit int) []chat.Message {
	entries := conversation
	if n := len(entries); n > 0 && entries[n-1].Role == chat.RoleBot && entries[n-1].Content == "" {
		entries = entries[:n-1]
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return chat.CloneMessages(entries)
}
