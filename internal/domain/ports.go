package domain

import "context"

// TestRepository defines the interface for test and question persistence.
// All failures surface as STORAGE_FAILURE domain errors.
type TestRepository interface {
	// CreateTest persists a new pending test.
	CreateTest(ctx context.Context, test *Test) error

	// GetTest retrieves a test by ID, nil when not found.
	GetTest(ctx context.Context, id string) (*Test, error)

	// GetTestWithQuestions retrieves a test with its questions attached,
	// ordered by question number.
	GetTestWithQuestions(ctx context.Context, id string) (*Test, error)

	// ListTests returns the tests created by the given owner, newest first.
	ListTests(ctx context.Context, createdBy string) ([]*Test, error)

	// UpdateTest applies the non-nil fields of patch to the test row.
	UpdateTest(ctx context.Context, id string, patch TestPatch) error

	// DeleteTest removes a test; questions and jobs cascade.
	DeleteTest(ctx context.Context, id string) error

	// CreateQuestions bulk-inserts questions inside one transaction.
	// Either every row lands or none do.
	CreateQuestions(ctx context.Context, questions []*Question) error

	// GetTestQuestions returns the questions of a test ordered by number.
	GetTestQuestions(ctx context.Context, testID string) ([]*Question, error)

	// UpdateQuestionAnswer writes answer fields onto one question row,
	// addressed by test ID and question number. Repeated writes overwrite.
	UpdateQuestionAnswer(ctx context.Context, testID string, questionNumber int, update AnswerUpdate) error

	// CreateProcessingJob records a stage-tracking job.
	CreateProcessingJob(ctx context.Context, job *ProcessingJob) error

	// GetProcessingJobs returns the jobs of a test in creation order.
	GetProcessingJobs(ctx context.Context, testID string) ([]*ProcessingJob, error)
}

// KnowledgeEntry is one knowledge-base row returned by similarity search.
type KnowledgeEntry struct {
	ID         string
	Title      string
	Content    string
	SourceURL  string
	Category   string
	Similarity float64
}

// KnowledgeRepository persists and searches the vector knowledge base.
type KnowledgeRepository interface {
	// SearchSimilar returns entries whose embedding similarity to the query
	// vector exceeds threshold, ordered by descending similarity.
	SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*KnowledgeEntry, error)

	// AddEntry stores content together with its embedding.
	AddEntry(ctx context.Context, title, content, sourceURL, category string, embedding []float32) error
}

// WebSearchResult is one hit from the web half of context retrieval.
type WebSearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearcher queries an external search engine.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]WebSearchResult, error)
}

// FileStorage stores uploaded source files and resolves file references
// back to bytes.
type FileStorage interface {
	// Upload stores data and returns the public URL it is addressable by.
	Upload(ctx context.Context, filename, contentType string, data []byte) (string, error)

	// Download fetches the bytes behind a file URL.
	Download(ctx context.Context, fileURL string) ([]byte, error)

	// Delete removes the file behind a URL. Callers treat failures as
	// non-fatal.
	Delete(ctx context.Context, fileURL string) error
}

// TextExtractor turns an uploaded file into raw text. The file kind is
// determined from the filename extension.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, filename string) (string, error)
}

// QuestionExtractor structures raw extracted text into ordered questions.
// It fails only when zero valid questions survive validation.
type QuestionExtractor interface {
	ExtractQuestions(ctx context.Context, rawText, testID string) ([]*Question, error)
}

// ContextRetriever assembles background context for a question from the
// knowledge base and web search. It never fails: sub-search errors
// degrade to an empty section.
type ContextRetriever interface {
	GetContext(ctx context.Context, questionText string, questionType QuestionType, maxResults int) string
}

// SolveRequest is the input to the answer generator.
type SolveRequest struct {
	QuestionText string
	QuestionType QuestionType
	Options      []string
	Context      string
}

// AnswerGenerator produces an answer for one question. Implementations
// absorb model and parse failures into a low-confidence fallback
// Solution; the error return is reserved for context cancellation.
type AnswerGenerator interface {
	SolveQuestion(ctx context.Context, req SolveRequest) (*Solution, error)
}

// EmbeddingService defines the interface for generating text embeddings.
type EmbeddingService interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}
