package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/thegovlab/reboot-chat/backend/internal/config"
	"github.com/thegovlab/reboot-chat/backend/internal/model/chat"
)

// Service answers questions with the configured chat model.
type Service struct {
	cfg   config.AIConfig
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the prompt→model chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{cfg: cfg, chain: runnable}, nil
}

// StreamingEnabled reports whether answers are streamed token by token.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// GenerateAnswer produces the whole answer in one call.
func (s *Service) GenerateAnswer(ctx context.Context, history []chat.Message, question, retrieved string) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, buildChainInput(history, question, retrieved))
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Printf("[ai] generated answer length=%d history=%d", len(response.Content), len(history))
	return response, nil
}

// StreamAnswer streams the answer as message chunks.
func (s *Service) StreamAnswer(ctx context.Context, history []chat.Message, question, retrieved string) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chain.Stream(ctx, buildChainInput(history, question, retrieved))
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	return stream, nil
}

func buildChainInput(history []chat.Message, question, retrieved string) map[string]any {
	return map[string]any{
		"system":  SystemPrompt,
		"history": BuildHistory(history),
		"query":   BuildQuestion(question, retrieved),
	}
}

// BuildHistory maps widget messages onto model roles. Empty messages, such as
// a bot answer that never arrived, are skipped.
func BuildHistory(messages []chat.Message) []*schema.Message {
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleBot:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
