package websearch

import (
	"context"
	"fmt"

	"test-solver/internal/config"
	"test-solver/internal/domain"
	"test-solver/internal/logger"

	"go.uber.org/zap"
	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// The Custom Search API caps a single page at 10 results.
const maxPageSize = 10

// GoogleSearcher implements domain.WebSearcher with the Google Custom
// Search API.
type GoogleSearcher struct {
	service  *customsearch.Service
	engineID string
}

// NewGoogleSearcher creates a new GoogleSearcher from search credentials.
func NewGoogleSearcher(ctx context.Context, cfg config.SearchConfig) (domain.WebSearcher, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, fmt.Errorf("google custom search API key and engine ID must be configured")
	}

	service, err := customsearch.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create custom search service: %w", err)
	}

	return &GoogleSearcher{service: service, engineID: cfg.EngineID}, nil
}

// Search implements domain.WebSearcher
func (s *GoogleSearcher) Search(ctx context.Context, query string, maxResults int) ([]domain.WebSearchResult, error) {
	if maxResults <= 0 || maxResults > maxPageSize {
		maxResults = maxPageSize
	}

	resp, err := s.service.Cse.List().
		Cx(s.engineID).
		Q(query).
		Num(int64(maxResults)).
		Safe("active").
		Fields("items(title,link,snippet)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("custom search request failed: %w", err)
	}

	results := make([]domain.WebSearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, domain.WebSearchResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}

	logger.Get().Debug("Web search completed",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results, nil
}
