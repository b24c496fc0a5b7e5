package adapter

import (
	"context"
	"fmt"

	"test-solver/internal/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ChatLLM is the prompt-in, text-out slice of the langchaingo clients
// that the extraction and generation adapters consume.
type ChatLLM interface {
	Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error)
}

// NewChatLLM builds the chat-completion client selected by cfg.Source.
func NewChatLLM(cfg config.LLMConfig) (ChatLLM, error) {
	switch cfg.Source {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithModel(cfg.Ollama.Model),
			ollama.WithServerURL(cfg.Ollama.ServerURL),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama LLM client: %w", err)
		}
		return llm, nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai API key is not configured")
		}
		opts := []openai.Option{openai.WithToken(cfg.OpenAI.APIKey)}
		if cfg.OpenAI.Model != "" {
			opts = append(opts, openai.WithModel(cfg.OpenAI.Model))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai LLM client: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported LLM source: %q", cfg.Source)
	}
}
