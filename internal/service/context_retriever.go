package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"test-solver/internal/config"
	"test-solver/internal/domain"
	"test-solver/internal/logger"

	"go.uber.org/zap"
)

// contextRetriever implements domain.ContextRetriever by combining
// knowledge-base similarity search with web search. Both halves run
// concurrently and fail independently: a sub-search error degrades to an
// empty section, never to a retrieval failure.
type contextRetriever struct {
	knowledgeRepo    domain.KnowledgeRepository
	embeddingService domain.EmbeddingService
	webSearcher      domain.WebSearcher
	threshold        float64
	maxWebResults    int
	previewLength    int
}

// NewContextRetriever creates a new instance of contextRetriever.
// webSearcher may be nil, in which case only the knowledge base is used.
func NewContextRetriever(
	knowledgeRepo domain.KnowledgeRepository,
	embeddingService domain.EmbeddingService,
	webSearcher domain.WebSearcher,
	embeddingCfg config.EmbeddingConfig,
	searchCfg config.SearchConfig,
	processingCfg config.ProcessingConfig,
) domain.ContextRetriever {
	maxWebResults := searchCfg.MaxWebResults
	if maxWebResults <= 0 {
		maxWebResults = 3
	}
	previewLength := processingCfg.SnippetPreviewLength
	if previewLength <= 0 {
		previewLength = 200
	}
	return &contextRetriever{
		knowledgeRepo:    knowledgeRepo,
		embeddingService: embeddingService,
		webSearcher:      webSearcher,
		threshold:        embeddingCfg.SimilarityThreshold,
		maxWebResults:    maxWebResults,
		previewLength:    previewLength,
	}
}

// GetContext implements domain.ContextRetriever
func (r *contextRetriever) GetContext(ctx context.Context, questionText string, questionType domain.QuestionType, maxResults int) string {
	l := logger.Get()
	l.Debug("Getting context for question",
		zap.String("question", truncate(questionText, 100)),
		zap.String("question_type", string(questionType)),
		zap.Int("max_results", maxResults))

	var (
		wg               sync.WaitGroup
		knowledgeEntries []*domain.KnowledgeEntry
		webResults       []domain.WebSearchResult
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		entries, err := r.searchKnowledgeBase(ctx, questionText, maxResults)
		if err != nil {
			l.Warn("Knowledge base search failed", zap.Error(err))
			return
		}
		knowledgeEntries = entries
	}()
	go func() {
		defer wg.Done()
		results, err := r.searchWeb(ctx, questionText)
		if err != nil {
			l.Warn("Web search failed", zap.Error(err))
			return
		}
		webResults = results
	}()
	wg.Wait()

	var parts []string

	if len(knowledgeEntries) > 0 {
		parts = append(parts, "KNOWLEDGE BASE:")
		for _, entry := range knowledgeEntries {
			parts = append(parts, fmt.Sprintf("- %s: %s...", entry.Title, truncate(entry.Content, r.previewLength)))
		}
		parts = append(parts, "")
	}

	if len(webResults) > 0 {
		parts = append(parts, "WEB SEARCH RESULTS:")
		for _, result := range webResults {
			parts = append(parts, fmt.Sprintf("- %s: %s", result.Title, result.Snippet))
		}
		parts = append(parts, "")
	}

	combined := strings.Join(parts, "\n")
	l.Debug("Context assembled",
		zap.Int("knowledge_results", len(knowledgeEntries)),
		zap.Int("web_results", len(webResults)),
		zap.Int("context_length", len(combined)))
	return combined
}

func (r *contextRetriever) searchKnowledgeBase(ctx context.Context, query string, maxResults int) ([]*domain.KnowledgeEntry, error) {
	embedding, err := r.embeddingService.Generate(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	return r.knowledgeRepo.SearchSimilar(ctx, embedding, r.threshold, maxResults)
}

func (r *contextRetriever) searchWeb(ctx context.Context, query string) ([]domain.WebSearchResult, error) {
	if r.webSearcher == nil {
		return nil, nil
	}
	return r.webSearcher.Search(ctx, query, r.maxWebResults)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
