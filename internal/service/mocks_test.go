package service

import (
	"context"

	"test-solver/internal/domain"
	"test-solver/internal/dto"

	"github.com/stretchr/testify/mock"
)

// MockTestRepository is a mock of domain.TestRepository
type MockTestRepository struct {
	mock.Mock
}

func (m *MockTestRepository) CreateTest(ctx context.Context, test *domain.Test) error {
	args := m.Called(ctx, test)
	return args.Error(0)
}

func (m *MockTestRepository) GetTest(ctx context.Context, id string) (*domain.Test, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Test), args.Error(1)
}

func (m *MockTestRepository) GetTestWithQuestions(ctx context.Context, id string) (*domain.Test, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Test), args.Error(1)
}

func (m *MockTestRepository) ListTests(ctx context.Context, createdBy string) ([]*domain.Test, error) {
	args := m.Called(ctx, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Test), args.Error(1)
}

func (m *MockTestRepository) UpdateTest(ctx context.Context, id string, patch domain.TestPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockTestRepository) DeleteTest(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTestRepository) CreateQuestions(ctx context.Context, questions []*domain.Question) error {
	args := m.Called(ctx, questions)
	return args.Error(0)
}

func (m *MockTestRepository) GetTestQuestions(ctx context.Context, testID string) ([]*domain.Question, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Question), args.Error(1)
}

func (m *MockTestRepository) UpdateQuestionAnswer(ctx context.Context, testID string, questionNumber int, update domain.AnswerUpdate) error {
	args := m.Called(ctx, testID, questionNumber, update)
	return args.Error(0)
}

func (m *MockTestRepository) CreateProcessingJob(ctx context.Context, job *domain.ProcessingJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockTestRepository) GetProcessingJobs(ctx context.Context, testID string) ([]*domain.ProcessingJob, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ProcessingJob), args.Error(1)
}

// MockFileStorage is a mock of domain.FileStorage
type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, filename, contentType, data)
	return args.String(0), args.Error(1)
}

func (m *MockFileStorage) Download(ctx context.Context, fileURL string) ([]byte, error) {
	args := m.Called(ctx, fileURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockFileStorage) Delete(ctx context.Context, fileURL string) error {
	args := m.Called(ctx, fileURL)
	return args.Error(0)
}

// MockTextExtractor is a mock of domain.TextExtractor
type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) ExtractText(ctx context.Context, data []byte, filename string) (string, error) {
	args := m.Called(ctx, data, filename)
	return args.String(0), args.Error(1)
}

// MockQuestionExtractor is a mock of domain.QuestionExtractor
type MockQuestionExtractor struct {
	mock.Mock
}

func (m *MockQuestionExtractor) ExtractQuestions(ctx context.Context, rawText, testID string) ([]*domain.Question, error) {
	args := m.Called(ctx, rawText, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Question), args.Error(1)
}

// MockContextRetriever is a mock of domain.ContextRetriever
type MockContextRetriever struct {
	mock.Mock
}

func (m *MockContextRetriever) GetContext(ctx context.Context, questionText string, questionType domain.QuestionType, maxResults int) string {
	args := m.Called(ctx, questionText, questionType, maxResults)
	return args.String(0)
}

// MockAnswerGenerator is a mock of domain.AnswerGenerator
type MockAnswerGenerator struct {
	mock.Mock
}

func (m *MockAnswerGenerator) SolveQuestion(ctx context.Context, req domain.SolveRequest) (*domain.Solution, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Solution), args.Error(1)
}

// MockKnowledgeRepository is a mock of domain.KnowledgeRepository
type MockKnowledgeRepository struct {
	mock.Mock
}

func (m *MockKnowledgeRepository) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, embedding, threshold, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeRepository) AddEntry(ctx context.Context, title, content, sourceURL, category string, embedding []float32) error {
	args := m.Called(ctx, title, content, sourceURL, category, embedding)
	return args.Error(0)
}

// MockEmbeddingService is a mock of domain.EmbeddingService
type MockEmbeddingService struct {
	mock.Mock
}

func (m *MockEmbeddingService) Generate(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockWebSearcher is a mock of domain.WebSearcher
type MockWebSearcher struct {
	mock.Mock
}

func (m *MockWebSearcher) Search(ctx context.Context, query string, maxResults int) ([]domain.WebSearchResult, error) {
	args := m.Called(ctx, query, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WebSearchResult), args.Error(1)
}

// MockProcessingService is a mock of ProcessingService
type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessTest(ctx context.Context, testID, fileURL string) error {
	args := m.Called(ctx, testID, fileURL)
	return args.Error(0)
}

func (m *MockProcessingService) ProcessTestAsync(testID, fileURL string) {
	m.Called(testID, fileURL)
}

func (m *MockProcessingService) GetProcessingStatus(ctx context.Context, testID string) (*dto.StatusResponse, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.StatusResponse), args.Error(1)
}

func (m *MockProcessingService) CancelProcessing(ctx context.Context, testID string) error {
	args := m.Called(ctx, testID)
	return args.Error(0)
}
