package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"test-solver/internal/config"
	"test-solver/internal/domain"
	"test-solver/internal/dto"
	"test-solver/internal/logger"

	"go.uber.org/zap"
)

// Pipeline stage names, persisted in job records and failure messages.
const (
	StageInitialization     = "initialization"
	StageOCR                = "ocr"
	StageQuestionExtraction = "question_extraction"
	StageQuestionSolving    = "question_solving"
	StageFinalization       = "finalization"
)

const (
	defaultMaxConcurrentQuestions = 10
	defaultBatchCooldown          = time.Second
	defaultMaxContextResults      = 5
)

// failure answer persisted for questions whose solving task failed
const (
	failureAnswer      = "Error occurred during processing"
	failureExplanation = "Processing error: %v"
)

// ProcessingService orchestrates the test solving pipeline.
type ProcessingService interface {
	// ProcessTest runs the full pipeline synchronously: OCR, question
	// extraction, persistence, batched solving, finalization. A fatal
	// stage error marks the test failed and is returned as a
	// *domain.ProcessingError.
	ProcessTest(ctx context.Context, testID, fileURL string) error

	// ProcessTestAsync runs ProcessTest on a supervised goroutine.
	// Panics are recovered and recorded on the test.
	ProcessTestAsync(testID, fileURL string)

	// GetProcessingStatus reports pipeline progress for a test.
	GetProcessingStatus(ctx context.Context, testID string) (*dto.StatusResponse, error)

	// CancelProcessing marks a test failed with a cancellation message.
	// In-flight work is not interrupted; late answer writes are harmless.
	CancelProcessing(ctx context.Context, testID string) error
}

// processingService implements ProcessingService
type processingService struct {
	repo              domain.TestRepository
	storage           domain.FileStorage
	textExtractor     domain.TextExtractor
	questionExtractor domain.QuestionExtractor
	contextRetriever  domain.ContextRetriever
	answerGenerator   domain.AnswerGenerator

	maxConcurrentQuestions int
	batchCooldown          time.Duration
	maxContextResults      int
}

// NewProcessingService creates a new instance of processingService
func NewProcessingService(
	repo domain.TestRepository,
	storage domain.FileStorage,
	textExtractor domain.TextExtractor,
	questionExtractor domain.QuestionExtractor,
	contextRetriever domain.ContextRetriever,
	answerGenerator domain.AnswerGenerator,
	cfg config.ProcessingConfig,
) ProcessingService {
	maxConcurrent := cfg.MaxConcurrentQuestions
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentQuestions
	}
	cooldown := cfg.BatchCooldown
	if cooldown <= 0 {
		cooldown = defaultBatchCooldown
	}
	maxContextResults := cfg.MaxContextResults
	if maxContextResults <= 0 {
		maxContextResults = defaultMaxContextResults
	}
	return &processingService{
		repo:                   repo,
		storage:                storage,
		textExtractor:          textExtractor,
		questionExtractor:      questionExtractor,
		contextRetriever:       contextRetriever,
		answerGenerator:        answerGenerator,
		maxConcurrentQuestions: maxConcurrent,
		batchCooldown:          cooldown,
		maxContextResults:      maxContextResults,
	}
}

// ProcessTest implements ProcessingService
func (s *processingService) ProcessTest(ctx context.Context, testID, fileURL string) error {
	l := logger.Get()
	start := time.Now()

	l.Info("Starting test processing",
		zap.String("test_id", testID),
		zap.String("file_url", fileURL))

	if err := s.markProcessing(ctx, testID); err != nil {
		return s.fail(ctx, testID, start, StageInitialization, err)
	}

	// Stage 1: download and OCR
	extractedText, err := s.runOCR(ctx, testID, fileURL)
	if err != nil {
		return s.fail(ctx, testID, start, StageOCR, err)
	}

	// Stage 2: extract and persist questions
	questions, err := s.runExtraction(ctx, testID, extractedText)
	if err != nil {
		return s.fail(ctx, testID, start, StageQuestionExtraction, err)
	}

	// Stage 3: solve in bounded batches
	solved, err := s.runSolving(ctx, testID, questions)
	if err != nil {
		return s.fail(ctx, testID, start, StageQuestionSolving, err)
	}

	// Stage 4: finalize
	processingTime := time.Since(start).Seconds()
	status := domain.TestStatusCompleted
	if err := s.repo.UpdateTest(ctx, testID, domain.TestPatch{
		Status:         &status,
		ProcessingTime: &processingTime,
	}); err != nil {
		return s.fail(ctx, testID, start, StageFinalization, err)
	}

	l.Info("Test processing completed",
		zap.String("test_id", testID),
		zap.Int("total_questions", len(questions)),
		zap.Int("questions_solved", solved),
		zap.Float64("processing_time", processingTime))
	return nil
}

// ProcessTestAsync implements ProcessingService
func (s *processingService) ProcessTestAsync(testID, fileURL string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Get().Error("Test processing panicked",
					zap.String("test_id", testID),
					zap.Any("panic", r))
				s.markFailed(context.Background(), testID, 0, fmt.Sprintf("processing panicked: %v", r))
			}
		}()

		if err := s.ProcessTest(context.Background(), testID, fileURL); err != nil {
			logger.Get().Error("Async test processing failed",
				zap.String("test_id", testID),
				zap.Error(err))
		}
	}()
}

// GetProcessingStatus implements ProcessingService
func (s *processingService) GetProcessingStatus(ctx context.Context, testID string) (*dto.StatusResponse, error) {
	test, err := s.repo.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if test == nil {
		return nil, domain.NewTestNotFoundError(testID)
	}

	status := &dto.StatusResponse{
		TestID:         test.ID,
		Status:         string(test.Status),
		TotalQuestions: test.TotalQuestions,
		ErrorMessage:   test.ErrorMessage,
	}
	if test.ProcessingTime > 0 {
		pt := test.ProcessingTime
		status.ProcessingTime = &pt
	}

	switch test.Status {
	case domain.TestStatusProcessing:
		questions, err := s.repo.GetTestQuestions(ctx, testID)
		if err != nil {
			return nil, err
		}
		answered := 0
		for _, q := range questions {
			if q.Answered() {
				answered++
			}
		}
		status.AnsweredQuestions = answered
		if test.TotalQuestions > 0 {
			status.ProgressPercentage = float64(answered) / float64(test.TotalQuestions) * 100
		}

		jobs, err := s.repo.GetProcessingJobs(ctx, testID)
		if err != nil {
			return nil, err
		}
		status.CurrentStage = currentStage(jobs)
		status.TotalJobs = len(jobs)
		for _, job := range jobs {
			switch job.Status {
			case domain.JobStatusCompleted:
				status.CompletedJobs++
			case domain.JobStatusFailed:
				status.FailedJobs++
			}
		}
	case domain.TestStatusCompleted:
		status.AnsweredQuestions = test.TotalQuestions
		status.ProgressPercentage = 100
	}

	return status, nil
}

// CancelProcessing implements ProcessingService
func (s *processingService) CancelProcessing(ctx context.Context, testID string) error {
	test, err := s.repo.GetTest(ctx, testID)
	if err != nil {
		return err
	}
	if test == nil {
		return domain.NewTestNotFoundError(testID)
	}
	if test.Status.IsTerminal() {
		return domain.NewInvalidInputError(fmt.Sprintf("test %s is already %s", testID, test.Status))
	}

	status := domain.TestStatusFailed
	message := "Processing cancelled by user"
	if err := s.repo.UpdateTest(ctx, testID, domain.TestPatch{
		Status:       &status,
		ErrorMessage: &message,
	}); err != nil {
		return err
	}

	logger.Get().Info("Test processing cancelled", zap.String("test_id", testID))
	return nil
}

func (s *processingService) markProcessing(ctx context.Context, testID string) error {
	status := domain.TestStatusProcessing
	return s.repo.UpdateTest(ctx, testID, domain.TestPatch{Status: &status})
}

// fail records the stage-tagged error on the test and wraps it as a
// ProcessingError.
func (s *processingService) fail(ctx context.Context, testID string, start time.Time, stage string, cause error) error {
	procErr := domain.NewProcessingError(stage, cause)
	processingTime := time.Since(start).Seconds()

	logger.Get().Error("Test processing failed",
		zap.String("test_id", testID),
		zap.String("stage", stage),
		zap.Float64("processing_time", processingTime),
		zap.Error(cause))

	s.markFailed(ctx, testID, processingTime, procErr.Error())
	return procErr
}

// markFailed is best-effort: a storage failure here can only be logged.
func (s *processingService) markFailed(ctx context.Context, testID string, processingTime float64, message string) {
	status := domain.TestStatusFailed
	patch := domain.TestPatch{Status: &status, ErrorMessage: &message}
	if processingTime > 0 {
		patch.ProcessingTime = &processingTime
	}
	if err := s.repo.UpdateTest(ctx, testID, patch); err != nil {
		logger.Get().Error("Failed to mark test as failed",
			zap.String("test_id", testID),
			zap.Error(err))
	}
}

func (s *processingService) runOCR(ctx context.Context, testID, fileURL string) (string, error) {
	jobStart := time.Now()

	fileContent, err := s.storage.Download(ctx, fileURL)
	if err != nil {
		s.recordJob(ctx, testID, StageOCR, jobStart, err, nil)
		return "", err
	}

	filename := filenameFromURL(fileURL)
	extractedText, err := s.textExtractor.ExtractText(ctx, fileContent, filename)
	if err != nil {
		s.recordJob(ctx, testID, StageOCR, jobStart, err, nil)
		return "", err
	}
	if strings.TrimSpace(extractedText) == "" {
		err := domain.NewExtractionError("no text could be extracted from the file", nil)
		s.recordJob(ctx, testID, StageOCR, jobStart, err, nil)
		return "", err
	}

	s.recordJob(ctx, testID, StageOCR, jobStart, nil, map[string]string{
		"text_length": strconv.Itoa(len(extractedText)),
	})
	logger.Get().Info("OCR completed",
		zap.String("test_id", testID),
		zap.Int("text_length", len(extractedText)))
	return extractedText, nil
}

func (s *processingService) runExtraction(ctx context.Context, testID, extractedText string) ([]*domain.Question, error) {
	jobStart := time.Now()

	questions, err := s.questionExtractor.ExtractQuestions(ctx, extractedText, testID)
	if err != nil {
		s.recordJob(ctx, testID, StageQuestionExtraction, jobStart, err, nil)
		return nil, err
	}

	if err := s.repo.CreateQuestions(ctx, questions); err != nil {
		s.recordJob(ctx, testID, StageQuestionExtraction, jobStart, err, nil)
		return nil, err
	}

	total := len(questions)
	if err := s.repo.UpdateTest(ctx, testID, domain.TestPatch{TotalQuestions: &total}); err != nil {
		s.recordJob(ctx, testID, StageQuestionExtraction, jobStart, err, nil)
		return nil, err
	}

	s.recordJob(ctx, testID, StageQuestionExtraction, jobStart, nil, map[string]string{
		"question_count": strconv.Itoa(total),
	})
	logger.Get().Info("Questions extracted",
		zap.String("test_id", testID),
		zap.Int("question_count", total))
	return questions, nil
}

// solveResult is the outcome of one solving task, matched to its question
// by value rather than by completion order.
type solveResult struct {
	questionNumber int
	err            error
}

// runSolving answers questions in batches of maxConcurrentQuestions.
// A failed task gets a failure answer persisted and never aborts its
// siblings; the stage fails only on context cancellation.
func (s *processingService) runSolving(ctx context.Context, testID string, questions []*domain.Question) (int, error) {
	l := logger.Get()
	jobStart := time.Now()

	batchCount := (len(questions) + s.maxConcurrentQuestions - 1) / s.maxConcurrentQuestions
	solved := 0

	for batchNum := 0; batchNum < batchCount; batchNum++ {
		if err := ctx.Err(); err != nil {
			s.recordJob(ctx, testID, StageQuestionSolving, jobStart, err, nil)
			return solved, err
		}

		batchStart := batchNum * s.maxConcurrentQuestions
		batchEnd := batchStart + s.maxConcurrentQuestions
		if batchEnd > len(questions) {
			batchEnd = len(questions)
		}
		batch := questions[batchStart:batchEnd]

		l.Info("Processing question batch",
			zap.String("test_id", testID),
			zap.Int("batch", batchNum+1),
			zap.Int("batches", batchCount),
			zap.Int("batch_size", len(batch)))

		results := s.solveBatch(ctx, testID, batch)

		for _, result := range results {
			if result.err != nil {
				l.Error("Question solving failed",
					zap.String("test_id", testID),
					zap.Int("question_number", result.questionNumber),
					zap.Error(result.err))

				update := domain.AnswerUpdate{
					Answer:      failureAnswer,
					Confidence:  0.0,
					Explanation: fmt.Sprintf(failureExplanation, result.err),
				}
				if err := s.repo.UpdateQuestionAnswer(ctx, testID, result.questionNumber, update); err != nil {
					l.Error("Failed to persist failure answer",
						zap.String("test_id", testID),
						zap.Int("question_number", result.questionNumber),
						zap.Error(err))
				}
				continue
			}
			solved++
		}

		// Cooldown between batches to be respectful to upstream APIs.
		if batchNum < batchCount-1 {
			select {
			case <-ctx.Done():
				s.recordJob(ctx, testID, StageQuestionSolving, jobStart, ctx.Err(), nil)
				return solved, ctx.Err()
			case <-time.After(s.batchCooldown):
			}
		}
	}

	s.recordJob(ctx, testID, StageQuestionSolving, jobStart, nil, map[string]string{
		"questions_solved": strconv.Itoa(solved),
		"questions_total":  strconv.Itoa(len(questions)),
	})
	return solved, nil
}

// solveBatch fans the batch out onto goroutines and collects one result
// per question, by index.
func (s *processingService) solveBatch(ctx context.Context, testID string, batch []*domain.Question) []solveResult {
	results := make([]solveResult, len(batch))
	var wg sync.WaitGroup

	for i, question := range batch {
		wg.Add(1)
		go func(idx int, q *domain.Question) {
			defer wg.Done()
			results[idx] = solveResult{
				questionNumber: q.QuestionNumber,
				err:            s.solveQuestion(ctx, testID, q),
			}
		}(i, question)
	}

	wg.Wait()
	return results
}

// solveQuestion retrieves context, generates an answer, and persists it.
func (s *processingService) solveQuestion(ctx context.Context, testID string, question *domain.Question) error {
	questionStart := time.Now()

	ragContext := s.contextRetriever.GetContext(ctx, question.QuestionText, question.QuestionType, s.maxContextResults)

	solution, err := s.answerGenerator.SolveQuestion(ctx, domain.SolveRequest{
		QuestionText: question.QuestionText,
		QuestionType: question.QuestionType,
		Options:      question.Options,
		Context:      ragContext,
	})
	if err != nil {
		return err
	}

	update := domain.AnswerUpdate{
		Answer:         solution.Answer,
		Confidence:     solution.Confidence,
		Explanation:    solution.Explanation,
		ProcessingTime: time.Since(questionStart).Seconds(),
	}
	if err := s.repo.UpdateQuestionAnswer(ctx, testID, question.QuestionNumber, update); err != nil {
		return err
	}

	logger.Get().Info("Question solved",
		zap.String("test_id", testID),
		zap.Int("question_number", question.QuestionNumber),
		zap.Float64("confidence", solution.Confidence))
	return nil
}

// recordJob persists a stage job record. Jobs are progress reporting
// only, so failures here are logged and swallowed.
func (s *processingService) recordJob(ctx context.Context, testID, jobType string, startedAt time.Time, jobErr error, metadata map[string]string) {
	job := &domain.ProcessingJob{
		TestID:      testID,
		JobType:     jobType,
		Status:      domain.JobStatusCompleted,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
		Metadata:    metadata,
	}
	if jobErr != nil {
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = jobErr.Error()
	}
	if err := s.repo.CreateProcessingJob(ctx, job); err != nil {
		logger.Get().Warn("Failed to record processing job",
			zap.String("test_id", testID),
			zap.String("job_type", jobType),
			zap.Error(err))
	}
}

// currentStage derives the stage in flight from recorded jobs. A job
// row is written as each stage finishes, so the live stage is the one
// after the most recent job.
func currentStage(jobs []*domain.ProcessingJob) string {
	if len(jobs) == 0 {
		return StageOCR
	}
	switch jobs[len(jobs)-1].JobType {
	case StageOCR:
		return StageQuestionExtraction
	case StageQuestionExtraction:
		return StageQuestionSolving
	default:
		return StageFinalization
	}
}

func filenameFromURL(fileURL string) string {
	if idx := strings.LastIndex(fileURL, "/"); idx != -1 {
		return fileURL[idx+1:]
	}
	return fileURL
}
