package embedding

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"test-solver/internal/cache"
	"test-solver/internal/config"
	"test-solver/internal/domain"
	"test-solver/internal/logger"

	"github.com/tmc/langchaingo/embeddings"
	openaiLLM "github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultEmbeddingTTL = 168 * time.Hour // 7 days

// OpenAIEmbeddingService implements the domain.EmbeddingService interface
// using OpenAI. Generated vectors are gob-encoded into the cache, and
// concurrent requests for the same text are deduplicated via singleflight.
type OpenAIEmbeddingService struct {
	embedder embeddings.Embedder
	cache    domain.Cache
	cacheTTL time.Duration
	sfGroup  singleflight.Group
}

// NewOpenAIEmbeddingService creates a new OpenAIEmbeddingService.
func NewOpenAIEmbeddingService(apiKey, modelName string, cacheClient domain.Cache, cfg config.EmbeddingConfig) (*OpenAIEmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key cannot be empty")
	}
	if modelName == "" {
		modelName = "text-embedding-ada-002"
	}

	llm, err := openaiLLM.New(
		openaiLLM.WithToken(apiKey),
		openaiLLM.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai LLM client for embedder: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder from openai LLM: %w", err)
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultEmbeddingTTL
	}

	return &OpenAIEmbeddingService{
		embedder: embedder,
		cache:    cacheClient,
		cacheTTL: cacheTTL,
	}, nil
}

// Generate creates an embedding for the given text using the OpenAI embedder.
func (s *OpenAIEmbeddingService) Generate(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("input text cannot be empty for embedding")
	}

	textHash := hashString(text)
	cacheKey := cache.GenerateCacheKey("embedding", "openai", textHash)

	if s.cache != nil {
		cachedDataString, err := s.cache.Get(ctx, cacheKey)
		if err == nil {
			var embedding []float32
			decoder := gob.NewDecoder(bytes.NewReader([]byte(cachedDataString)))
			if errDecode := decoder.Decode(&embedding); errDecode == nil {
				return embedding, nil
			}
			logger.Get().Warn("Failed to decode cached embedding, regenerating",
				zap.String("cacheKey", cacheKey))
		} else if err != domain.ErrCacheMiss {
			logger.Get().Warn("Embedding cache read failed",
				zap.Error(err), zap.String("cacheKey", cacheKey))
		}
	}

	res, err, _ := s.sfGroup.Do(cacheKey, func() (interface{}, error) {
		rawEmbedding, fetchErr := s.embedder.EmbedQuery(ctx, text)
		if fetchErr != nil {
			return nil, fmt.Errorf("failed to generate embedding using openai: %w", fetchErr)
		}
		if rawEmbedding == nil {
			return nil, fmt.Errorf("received nil embedding from openai without error")
		}

		embeddingResult := make([]float32, len(rawEmbedding))
		for i, v := range rawEmbedding {
			embeddingResult[i] = float32(v)
		}

		if s.cache != nil {
			var buffer bytes.Buffer
			if errEncode := gob.NewEncoder(&buffer).Encode(embeddingResult); errEncode != nil {
				// Caching is best-effort; the embedding itself is fine.
				return embeddingResult, nil
			}
			if errCacheSet := s.cache.Set(ctx, cacheKey, buffer.String(), s.cacheTTL); errCacheSet != nil {
				logger.Get().Warn("Failed to cache embedding",
					zap.Error(errCacheSet), zap.String("cacheKey", cacheKey))
			}
		}
		return embeddingResult, nil
	})

	if err != nil {
		return nil, err
	}

	if embedding, ok := res.([]float32); ok {
		return embedding, nil
	}
	return nil, fmt.Errorf("unexpected type from singleflight.Do for openai embedding: %T", res)
}
