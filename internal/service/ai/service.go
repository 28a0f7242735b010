package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/specforge/specforge/internal/analysis/coherence"
	"github.com/specforge/specforge/internal/config"
)

// Service wraps the chat completion model with the content-quality
// retry policy. Transport failures are returned as-is; only invalid
// content is re-issued.
type Service struct {
	chatModel  model.ChatModel
	maxRetries int
}

// NewService builds the service from configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return NewWithModel(chatModel, cfg.MaxRetries), nil
}

// NewWithModel wraps an existing model instance.
func NewWithModel(chatModel model.ChatModel, maxRetries int) *Service {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Service{chatModel: chatModel, maxRetries: maxRetries}
}

// Generate issues a single completion call.
func (s *Service) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	response, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generate completion: %w", err)
	}
	return response, nil
}

// GenerateValidated issues a completion and re-issues it while the
// returned text fails the coherence check, up to maxRetries re-issues
// (maxRetries+1 calls total). On exhaustion the last response is
// returned with valid=false so the caller can substitute an apology
// turn. A transport error aborts immediately without retrying.
func (s *Service) GenerateValidated(ctx context.Context, messages []*schema.Message) (*schema.Message, bool, error) {
	var last *schema.Message
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		response, err := s.Generate(ctx, messages)
		if err != nil {
			return nil, false, err
		}
		last = response

		if coherence.IsValid(response.Content) {
			return response, true, nil
		}
		log.Printf("[ai] invalid completion on attempt %d/%d, length=%d",
			attempt+1, s.maxRetries+1, len(response.Content))
	}
	return last, false, nil
}
