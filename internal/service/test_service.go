package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"test-solver/internal/domain"
	"test-solver/internal/dto"
	"test-solver/internal/logger"
	"test-solver/internal/util"

	"go.uber.org/zap"
)

// supportedUploadExtensions maps accepted file extensions to true. The
// set mirrors what the OCR adapter can actually process.
var supportedUploadExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".bmp":  true,
}

// supportedUploadMIMETypes is the Content-Type counterpart of
// supportedUploadExtensions. An empty Content-Type is accepted since
// some clients omit it.
var supportedUploadMIMETypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/tiff":      true,
	"image/bmp":       true,
}

// UploadTestRequest carries one uploaded file into the service layer.
type UploadTestRequest struct {
	Filename    string
	ContentType string
	Data        []byte
	Title       string
	CreatedBy   string
}

// TestService manages the test lifecycle around the processing pipeline:
// upload, listing, retrieval, deletion.
type TestService interface {
	// UploadTest stores the file, creates a pending test, and kicks off
	// asynchronous processing.
	UploadTest(ctx context.Context, req UploadTestRequest) (*dto.UploadResponse, error)

	// ListTests returns the tests owned by createdBy, newest first.
	ListTests(ctx context.Context, createdBy string) (*dto.TestListResponse, error)

	// GetTest returns a test with its questions.
	GetTest(ctx context.Context, id string) (*dto.TestResponse, error)

	// DeleteTest removes the test row and its stored file. The file
	// delete is best-effort.
	DeleteTest(ctx context.Context, id string) error
}

// testService implements TestService
type testService struct {
	repo      domain.TestRepository
	storage   domain.FileStorage
	processor ProcessingService
}

// NewTestService creates a new instance of testService
func NewTestService(repo domain.TestRepository, storage domain.FileStorage, processor ProcessingService) TestService {
	return &testService{
		repo:      repo,
		storage:   storage,
		processor: processor,
	}
}

// UploadTest implements TestService
func (s *testService) UploadTest(ctx context.Context, req UploadTestRequest) (*dto.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(req.Filename))
	if !supportedUploadExtensions[ext] {
		return nil, domain.NewInvalidInputError(fmt.Sprintf("unsupported file type: %s", ext))
	}
	if mime := strings.ToLower(req.ContentType); mime != "" && !supportedUploadMIMETypes[mime] {
		return nil, domain.NewInvalidInputError(fmt.Sprintf("unsupported MIME type: %s", req.ContentType))
	}
	if len(req.Data) == 0 {
		return nil, domain.NewInvalidInputError("uploaded file is empty")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(req.Filename, ext)
	}

	fileURL, err := s.storage.Upload(ctx, req.Filename, req.ContentType, req.Data)
	if err != nil {
		return nil, err
	}

	test := domain.NewTest(util.NewULID(), title, fileURL, req.Filename, req.CreatedBy)
	if err := test.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTest(ctx, test); err != nil {
		// The orphaned file is cleaned up so retries do not accumulate blobs.
		if delErr := s.storage.Delete(ctx, fileURL); delErr != nil {
			logger.Get().Warn("Failed to clean up file after create failure",
				zap.String("file_url", fileURL),
				zap.Error(delErr))
		}
		return nil, err
	}

	s.processor.ProcessTestAsync(test.ID, fileURL)

	logger.Get().Info("Test uploaded",
		zap.String("test_id", test.ID),
		zap.String("filename", req.Filename),
		zap.Int("size_bytes", len(req.Data)))

	return &dto.UploadResponse{
		TestID:   test.ID,
		Status:   string(test.Status),
		Message:  "Test uploaded successfully. Processing started.",
		FileURL:  fileURL,
		Filename: req.Filename,
	}, nil
}

// ListTests implements TestService
func (s *testService) ListTests(ctx context.Context, createdBy string) (*dto.TestListResponse, error) {
	tests, err := s.repo.ListTests(ctx, createdBy)
	if err != nil {
		return nil, err
	}

	resp := &dto.TestListResponse{
		Tests: make([]dto.TestResponse, 0, len(tests)),
		Total: len(tests),
	}
	for _, test := range tests {
		resp.Tests = append(resp.Tests, toTestResponse(test, false))
	}
	return resp, nil
}

// GetTest implements TestService
func (s *testService) GetTest(ctx context.Context, id string) (*dto.TestResponse, error) {
	test, err := s.repo.GetTestWithQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	if test == nil {
		return nil, domain.NewTestNotFoundError(id)
	}

	resp := toTestResponse(test, true)
	return &resp, nil
}

// DeleteTest implements TestService
func (s *testService) DeleteTest(ctx context.Context, id string) error {
	test, err := s.repo.GetTest(ctx, id)
	if err != nil {
		return err
	}
	if test == nil {
		return domain.NewTestNotFoundError(id)
	}

	if err := s.storage.Delete(ctx, test.FileURL); err != nil {
		logger.Get().Warn("Failed to delete stored file",
			zap.String("test_id", id),
			zap.String("file_url", test.FileURL),
			zap.Error(err))
	}

	if err := s.repo.DeleteTest(ctx, id); err != nil {
		return err
	}

	logger.Get().Info("Test deleted", zap.String("test_id", id))
	return nil
}

func toTestResponse(test *domain.Test, includeQuestions bool) dto.TestResponse {
	resp := dto.TestResponse{
		ID:               test.ID,
		Title:            test.Title,
		OriginalFilename: test.OriginalFilename,
		FileURL:          test.FileURL,
		Status:           string(test.Status),
		TotalQuestions:   test.TotalQuestions,
		ErrorMessage:     test.ErrorMessage,
		CreatedAt:        test.CreatedAt,
		UpdatedAt:        test.UpdatedAt,
	}
	if test.ProcessingTime > 0 {
		pt := test.ProcessingTime
		resp.ProcessingTime = &pt
	}
	if includeQuestions {
		resp.Questions = make([]dto.QuestionResponse, 0, len(test.Questions))
		for _, q := range test.Questions {
			resp.Questions = append(resp.Questions, toQuestionResponse(q))
		}
	}
	return resp
}

func toQuestionResponse(q *domain.Question) dto.QuestionResponse {
	resp := dto.QuestionResponse{
		ID:             q.ID,
		QuestionNumber: q.QuestionNumber,
		QuestionText:   q.QuestionText,
		QuestionType:   string(q.QuestionType),
		Options:        q.Options,
		AIAnswer:       q.AIAnswer,
		Explanation:    q.Explanation,
	}
	if q.Answered() {
		confidence := q.Confidence
		resp.Confidence = &confidence
	}
	if q.ProcessingTime > 0 {
		pt := q.ProcessingTime
		resp.ProcessingTime = &pt
	}
	return resp
}
