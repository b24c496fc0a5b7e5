package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"test-solver/internal/domain"
	"test-solver/internal/repository/models"
	"test-solver/internal/util"

	"github.com/jmoiron/sqlx"
)

// KnowledgeDatabaseAdapter implements domain.KnowledgeRepository using
// sqlx.DB over a pgvector-enabled Postgres.
type KnowledgeDatabaseAdapter struct {
	db *sqlx.DB
}

// NewKnowledgeDatabaseAdapter creates a new instance of KnowledgeDatabaseAdapter
func NewKnowledgeDatabaseAdapter(db *sqlx.DB) domain.KnowledgeRepository {
	return &KnowledgeDatabaseAdapter{db: db}
}

// SearchSimilar implements domain.KnowledgeRepository. Similarity is
// cosine similarity computed in SQL from the pgvector distance operator.
func (a *KnowledgeDatabaseAdapter) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*domain.KnowledgeEntry, error) {
	if len(embedding) == 0 {
		return []*domain.KnowledgeEntry{}, nil
	}

	query := `SELECT
		id, title, content, source_url, category,
		1 - (embedding <=> $1::vector) AS similarity
	FROM knowledge_base
	WHERE 1 - (embedding <=> $1::vector) > $2
	ORDER BY embedding <=> $1::vector ASC
	LIMIT $3`

	var modelEntries []models.KnowledgeBase
	err := a.db.SelectContext(ctx, &modelEntries, query, vectorLiteral(embedding), threshold, limit)
	if err != nil {
		return nil, domain.NewStorageError("failed to search knowledge base", err)
	}

	entries := make([]*domain.KnowledgeEntry, 0, len(modelEntries))
	for i := range modelEntries {
		m := &modelEntries[i]
		entries = append(entries, &domain.KnowledgeEntry{
			ID:         m.ID,
			Title:      m.Title,
			Content:    m.Content,
			SourceURL:  util.NullStringToString(m.SourceURL),
			Category:   util.NullStringToString(m.Category),
			Similarity: m.Similarity,
		})
	}
	return entries, nil
}

// AddEntry implements domain.KnowledgeRepository
func (a *KnowledgeDatabaseAdapter) AddEntry(ctx context.Context, title, content, sourceURL, category string, embedding []float32) error {
	query := `INSERT INTO knowledge_base (
		id, title, content, source_url, category, embedding, created_at
	) VALUES ($1, $2, $3, $4, $5, $6::vector, $7)`

	_, err := a.db.ExecContext(ctx, query,
		util.NewULID(),
		title,
		content,
		util.StringToNullString(sourceURL),
		util.StringToNullString(category),
		vectorLiteral(embedding),
		time.Now(),
	)
	if err != nil {
		return domain.NewStorageError("failed to add knowledge base entry", err)
	}
	return nil
}

// vectorLiteral renders an embedding in the pgvector text format,
// e.g. "[0.1,0.2,0.3]".
func vectorLiteral(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
