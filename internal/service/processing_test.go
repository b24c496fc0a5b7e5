package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"test-solver/internal/config"
	"test-solver/internal/domain"
	"test-solver/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(config.LoggerConfig{Level: "error", Env: "test"}); err != nil {
		panic(err)
	}
	code := m.Run()
	logger.Sync()
	os.Exit(code)
}

type processingFixture struct {
	repo      *MockTestRepository
	storage   *MockFileStorage
	ocr       *MockTextExtractor
	extractor *MockQuestionExtractor
	retriever *MockContextRetriever
	generator *MockAnswerGenerator
	svc       ProcessingService
}

func newProcessingFixture(t *testing.T, cfg config.ProcessingConfig) *processingFixture {
	t.Helper()
	f := &processingFixture{
		repo:      new(MockTestRepository),
		storage:   new(MockFileStorage),
		ocr:       new(MockTextExtractor),
		extractor: new(MockQuestionExtractor),
		retriever: new(MockContextRetriever),
		generator: new(MockAnswerGenerator),
	}
	f.svc = NewProcessingService(f.repo, f.storage, f.ocr, f.extractor, f.retriever, f.generator, cfg)
	return f
}

func (f *processingFixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.repo.AssertExpectations(t)
	f.storage.AssertExpectations(t)
	f.ocr.AssertExpectations(t)
	f.extractor.AssertExpectations(t)
	f.retriever.AssertExpectations(t)
	f.generator.AssertExpectations(t)
}

func statusPatch(status domain.TestStatus) interface{} {
	return mock.MatchedBy(func(p domain.TestPatch) bool {
		return p.Status != nil && *p.Status == status && p.TotalQuestions == nil
	})
}

func totalQuestionsPatch(total int) interface{} {
	return mock.MatchedBy(func(p domain.TestPatch) bool {
		return p.TotalQuestions != nil && *p.TotalQuestions == total
	})
}

func makeQuestions(testID string, count int) []*domain.Question {
	questions := make([]*domain.Question, 0, count)
	for i := 1; i <= count; i++ {
		questions = append(questions, &domain.Question{
			ID:             fmt.Sprintf("q-%d", i),
			TestID:         testID,
			QuestionNumber: i,
			QuestionText:   fmt.Sprintf("What is question %d about?", i),
			QuestionType:   domain.QuestionTypeShortAnswer,
		})
	}
	return questions
}

func TestProcessTest_Success(t *testing.T) {
	cfg := config.ProcessingConfig{MaxConcurrentQuestions: 2, BatchCooldown: time.Millisecond}
	f := newProcessingFixture(t, cfg)

	testID := "test-1"
	fileURL := "http://localhost:8080/files/test-1_exam.pdf"
	questions := makeQuestions(testID, 3)

	f.repo.On("UpdateTest", mock.Anything, testID, statusPatch(domain.TestStatusProcessing)).Return(nil).Once()
	f.storage.On("Download", mock.Anything, fileURL).Return([]byte("pdf-bytes"), nil).Once()
	f.ocr.On("ExtractText", mock.Anything, []byte("pdf-bytes"), "test-1_exam.pdf").
		Return("Question 1: ...", nil).Once()
	f.extractor.On("ExtractQuestions", mock.Anything, "Question 1: ...", testID).Return(questions, nil).Once()
	f.repo.On("CreateQuestions", mock.Anything, questions).Return(nil).Once()
	f.repo.On("UpdateTest", mock.Anything, testID, totalQuestionsPatch(3)).Return(nil).Once()
	f.repo.On("CreateProcessingJob", mock.Anything, mock.AnythingOfType("*domain.ProcessingJob")).Return(nil)

	f.retriever.On("GetContext", mock.Anything, mock.Anything, domain.QuestionTypeShortAnswer, mock.Anything).
		Return("KNOWLEDGE BASE:\n- fact").Times(3)
	f.generator.On("SolveQuestion", mock.Anything, mock.AnythingOfType("domain.SolveRequest")).
		Return(&domain.Solution{Answer: "42", Confidence: 0.9, Explanation: "because"}, nil).Times(3)
	f.repo.On("UpdateQuestionAnswer", mock.Anything, testID, mock.AnythingOfType("int"),
		mock.MatchedBy(func(u domain.AnswerUpdate) bool {
			return u.Answer == "42" && u.Confidence == 0.9 && u.ProcessingTime >= 0
		})).Return(nil).Times(3)

	f.repo.On("UpdateTest", mock.Anything, testID, mock.MatchedBy(func(p domain.TestPatch) bool {
		return p.Status != nil && *p.Status == domain.TestStatusCompleted && p.ProcessingTime != nil
	})).Return(nil).Once()

	err := f.svc.ProcessTest(context.Background(), testID, fileURL)

	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestProcessTest_DownloadFailureMarksFailed(t *testing.T) {
	f := newProcessingFixture(t, config.ProcessingConfig{})

	testID := "test-2"
	fileURL := "http://localhost:8080/files/missing.pdf"

	f.repo.On("UpdateTest", mock.Anything, testID, statusPatch(domain.TestStatusProcessing)).Return(nil).Once()
	f.storage.On("Download", mock.Anything, fileURL).Return(nil, errors.New("file not found")).Once()
	f.repo.On("CreateProcessingJob", mock.Anything, mock.MatchedBy(func(j *domain.ProcessingJob) bool {
		return j.JobType == StageOCR && j.Status == domain.JobStatusFailed
	})).Return(nil).Once()
	f.repo.On("UpdateTest", mock.Anything, testID, mock.MatchedBy(func(p domain.TestPatch) bool {
		return p.Status != nil && *p.Status == domain.TestStatusFailed && p.ErrorMessage != nil
	})).Return(nil).Once()

	err := f.svc.ProcessTest(context.Background(), testID, fileURL)

	var procErr *domain.ProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, StageOCR, procErr.Stage)
	f.assertExpectations(t)
}

func TestProcessTest_BlankTextFailsOCRStage(t *testing.T) {
	f := newProcessingFixture(t, config.ProcessingConfig{})

	testID := "test-3"
	fileURL := "http://localhost:8080/files/blank.png"

	f.repo.On("UpdateTest", mock.Anything, testID, statusPatch(domain.TestStatusProcessing)).Return(nil).Once()
	f.storage.On("Download", mock.Anything, fileURL).Return([]byte("png"), nil).Once()
	f.ocr.On("ExtractText", mock.Anything, mock.Anything, "blank.png").Return("   \n\t", nil).Once()
	f.repo.On("CreateProcessingJob", mock.Anything, mock.AnythingOfType("*domain.ProcessingJob")).Return(nil)
	f.repo.On("UpdateTest", mock.Anything, testID, mock.MatchedBy(func(p domain.TestPatch) bool {
		return p.Status != nil && *p.Status == domain.TestStatusFailed
	})).Return(nil).Once()

	err := f.svc.ProcessTest(context.Background(), testID, fileURL)

	var procErr *domain.ProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, StageOCR, procErr.Stage)
	f.extractor.AssertNotCalled(t, "ExtractQuestions", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestProcessTest_ExtractionFailureMarksFailed(t *testing.T) {
	f := newProcessingFixture(t, config.ProcessingConfig{})

	testID := "test-4"
	fileURL := "http://localhost:8080/files/exam.pdf"

	f.repo.On("UpdateTest", mock.Anything, testID, statusPatch(domain.TestStatusProcessing)).Return(nil).Once()
	f.storage.On("Download", mock.Anything, fileURL).Return([]byte("pdf"), nil).Once()
	f.ocr.On("ExtractText", mock.Anything, mock.Anything, "exam.pdf").Return("some text", nil).Once()
	f.extractor.On("ExtractQuestions", mock.Anything, "some text", testID).
		Return(nil, domain.NewExtractionError("no valid questions could be extracted from the text", nil)).Once()
	f.repo.On("CreateProcessingJob", mock.Anything, mock.AnythingOfType("*domain.ProcessingJob")).Return(nil)
	f.repo.On("UpdateTest", mock.Anything, testID, mock.MatchedBy(func(p domain.TestPatch) bool {
		return p.Status != nil && *p.Status == domain.TestStatusFailed
	})).Return(nil).Once()

	err := f.svc.ProcessTest(context.Background(), testID, fileURL)

	var procErr *domain.ProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, StageQuestionExtraction, procErr.Stage)
	f.assertExpectations(t)
}

func TestProcessTest_SolverFailurePersistsFailureAnswer(t *testing.T) {
	cfg := config.ProcessingConfig{MaxConcurrentQuestions: 5, BatchCooldown: time.Millisecond}
	f := newProcessingFixture(t, cfg)

	testID := "test-5"
	fileURL := "http://localhost:8080/files/exam.pdf"
	questions := makeQuestions(testID, 2)

	f.repo.On("UpdateTest", mock.Anything, testID, statusPatch(domain.TestStatusProcessing)).Return(nil).Once()
	f.storage.On("Download", mock.Anything, fileURL).Return([]byte("pdf"), nil).Once()
	f.ocr.On("ExtractText", mock.Anything, mock.Anything, "exam.pdf").Return("text", nil).Once()
	f.extractor.On("ExtractQuestions", mock.Anything, "text", testID).Return(questions, nil).Once()
	f.repo.On("CreateQuestions", mock.Anything, questions).Return(nil).Once()
	f.repo.On("UpdateTest", mock.Anything, testID, totalQuestionsPatch(2)).Return(nil).Once()
	f.repo.On("CreateProcessingJob", mock.Anything, mock.AnythingOfType("*domain.ProcessingJob")).Return(nil)
	f.retriever.On("GetContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("").Times(2)

	// Question 1 solves normally, question 2's answer write keeps failing.
	f.generator.On("SolveQuestion", mock.Anything, mock.MatchedBy(func(r domain.SolveRequest) bool {
		return r.QuestionText == questions[0].QuestionText
	})).Return(&domain.Solution{Answer: "A", Confidence: 0.8, Explanation: "ok"}, nil).Once()
	f.generator.On("SolveQuestion", mock.Anything, mock.MatchedBy(func(r domain.SolveRequest) bool {
		return r.QuestionText == questions[1].QuestionText
	})).Return(&domain.Solution{Answer: "B", Confidence: 0.8, Explanation: "ok"}, nil).Once()

	f.repo.On("UpdateQuestionAnswer", mock.Anything, testID, 1, mock.MatchedBy(func(u domain.AnswerUpdate) bool {
		return u.Answer == "A"
	})).Return(nil).Once()
	writeErr := errors.New("db write failed")
	f.repo.On("UpdateQuestionAnswer", mock.Anything, testID, 2, mock.MatchedBy(func(u domain.AnswerUpdate) bool {
		return u.Answer == "B"
	})).Return(writeErr).Once()
	f.repo.On("UpdateQuestionAnswer", mock.Anything, testID, 2, mock.MatchedBy(func(u domain.AnswerUpdate) bool {
		return u.Answer == "Error occurred during processing" &&
			u.Confidence == 0.0 &&
			u.Explanation == "Processing error: db write failed"
	})).Return(nil).Once()

	f.repo.On("UpdateTest", mock.Anything, testID, mock.MatchedBy(func(p domain.TestPatch) bool {
		return p.Status != nil && *p.Status == domain.TestStatusCompleted
	})).Return(nil).Once()

	err := f.svc.ProcessTest(context.Background(), testID, fileURL)

	require.NoError(t, err)
	f.assertExpectations(t)
}

func TestProcessTest_CancelledContextStopsSolving(t *testing.T) {
	cfg := config.ProcessingConfig{MaxConcurrentQuestions: 1, BatchCooldown: time.Millisecond}
	f := newProcessingFixture(t, cfg)

	testID := "test-6"
	fileURL := "http://localhost:8080/files/exam.pdf"
	questions := makeQuestions(testID, 2)

	ctx, cancel := context.WithCancel(context.Background())

	f.repo.On("UpdateTest", mock.Anything, testID, statusPatch(domain.TestStatusProcessing)).Return(nil).Once()
	f.storage.On("Download", mock.Anything, fileURL).Return([]byte("pdf"), nil).Once()
	f.ocr.On("ExtractText", mock.Anything, mock.Anything, "exam.pdf").Return("text", nil).Once()
	f.extractor.On("ExtractQuestions", mock.Anything, "text", testID).Return(questions, nil).Once()
	f.repo.On("CreateQuestions", mock.Anything, questions).Return(nil).Once()
	f.repo.On("UpdateTest", mock.Anything, testID, totalQuestionsPatch(2)).Return(nil).Once()
	f.repo.On("CreateProcessingJob", mock.Anything, mock.AnythingOfType("*domain.ProcessingJob")).Return(nil)

	// Cancel during the first batch so the cooldown select aborts.
	f.retriever.On("GetContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).Return("").Once()
	f.generator.On("SolveQuestion", mock.Anything, mock.AnythingOfType("domain.SolveRequest")).
		Return(&domain.Solution{Answer: "A", Confidence: 0.8}, nil).Once()
	f.repo.On("UpdateQuestionAnswer", mock.Anything, testID, 1, mock.AnythingOfType("domain.AnswerUpdate")).
		Return(nil).Once()

	f.repo.On("UpdateTest", mock.Anything, testID, mock.MatchedBy(func(p domain.TestPatch) bool {
		return p.Status != nil && *p.Status == domain.TestStatusFailed
	})).Return(nil).Once()

	err := f.svc.ProcessTest(ctx, testID, fileURL)

	var procErr *domain.ProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, StageQuestionSolving, procErr.Stage)
	assert.ErrorIs(t, err, context.Canceled)
	// Only the first question was attempted.
	f.generator.AssertNumberOfCalls(t, "SolveQuestion", 1)
	f.assertExpectations(t)
}

func TestGetProcessingStatus(t *testing.T) {
	t.Run("processing test reports partial progress", func(t *testing.T) {
		f := newProcessingFixture(t, config.ProcessingConfig{})

		test := &domain.Test{ID: "test-7", Status: domain.TestStatusProcessing, TotalQuestions: 4}
		questions := makeQuestions("test-7", 4)
		questions[0].AIAnswer = "A"
		questions[1].AIAnswer = "B"

		jobs := []*domain.ProcessingJob{
			{TestID: "test-7", JobType: StageOCR, Status: domain.JobStatusCompleted},
			{TestID: "test-7", JobType: StageQuestionExtraction, Status: domain.JobStatusCompleted},
		}
		f.repo.On("GetTest", mock.Anything, "test-7").Return(test, nil).Once()
		f.repo.On("GetTestQuestions", mock.Anything, "test-7").Return(questions, nil).Once()
		f.repo.On("GetProcessingJobs", mock.Anything, "test-7").Return(jobs, nil).Once()

		status, err := f.svc.GetProcessingStatus(context.Background(), "test-7")

		require.NoError(t, err)
		assert.Equal(t, "processing", status.Status)
		assert.Equal(t, 2, status.AnsweredQuestions)
		assert.InDelta(t, 50.0, status.ProgressPercentage, 0.001)
		assert.Equal(t, StageQuestionSolving, status.CurrentStage)
		assert.Equal(t, 2, status.TotalJobs)
		assert.Equal(t, 2, status.CompletedJobs)
		assert.Equal(t, 0, status.FailedJobs)
		f.assertExpectations(t)
	})

	t.Run("processing test with no jobs reports the ocr stage", func(t *testing.T) {
		f := newProcessingFixture(t, config.ProcessingConfig{})

		test := &domain.Test{ID: "test-7b", Status: domain.TestStatusProcessing}
		f.repo.On("GetTest", mock.Anything, "test-7b").Return(test, nil).Once()
		f.repo.On("GetTestQuestions", mock.Anything, "test-7b").Return(nil, nil).Once()
		f.repo.On("GetProcessingJobs", mock.Anything, "test-7b").Return(nil, nil).Once()

		status, err := f.svc.GetProcessingStatus(context.Background(), "test-7b")

		require.NoError(t, err)
		assert.Equal(t, StageOCR, status.CurrentStage)
		assert.Equal(t, 0, status.TotalJobs)
		f.assertExpectations(t)
	})

	t.Run("failed jobs are counted separately", func(t *testing.T) {
		f := newProcessingFixture(t, config.ProcessingConfig{})

		test := &domain.Test{ID: "test-7c", Status: domain.TestStatusProcessing, TotalQuestions: 2}
		jobs := []*domain.ProcessingJob{
			{TestID: "test-7c", JobType: StageOCR, Status: domain.JobStatusFailed},
		}
		f.repo.On("GetTest", mock.Anything, "test-7c").Return(test, nil).Once()
		f.repo.On("GetTestQuestions", mock.Anything, "test-7c").Return(nil, nil).Once()
		f.repo.On("GetProcessingJobs", mock.Anything, "test-7c").Return(jobs, nil).Once()

		status, err := f.svc.GetProcessingStatus(context.Background(), "test-7c")

		require.NoError(t, err)
		assert.Equal(t, StageQuestionExtraction, status.CurrentStage)
		assert.Equal(t, 1, status.TotalJobs)
		assert.Equal(t, 0, status.CompletedJobs)
		assert.Equal(t, 1, status.FailedJobs)
		f.assertExpectations(t)
	})

	t.Run("completed test reports full progress", func(t *testing.T) {
		f := newProcessingFixture(t, config.ProcessingConfig{})

		test := &domain.Test{
			ID:             "test-8",
			Status:         domain.TestStatusCompleted,
			TotalQuestions: 3,
			ProcessingTime: 12.5,
		}
		f.repo.On("GetTest", mock.Anything, "test-8").Return(test, nil).Once()

		status, err := f.svc.GetProcessingStatus(context.Background(), "test-8")

		require.NoError(t, err)
		assert.Equal(t, 3, status.AnsweredQuestions)
		assert.Equal(t, 100.0, status.ProgressPercentage)
		require.NotNil(t, status.ProcessingTime)
		assert.Equal(t, 12.5, *status.ProcessingTime)
		f.assertExpectations(t)
	})

	t.Run("unknown test returns not found", func(t *testing.T) {
		f := newProcessingFixture(t, config.ProcessingConfig{})
		f.repo.On("GetTest", mock.Anything, "nope").Return(nil, nil).Once()

		_, err := f.svc.GetProcessingStatus(context.Background(), "nope")

		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrNotFound, domainErr.Code)
		f.assertExpectations(t)
	})
}

func TestCancelProcessing(t *testing.T) {
	t.Run("marks an active test failed", func(t *testing.T) {
		f := newProcessingFixture(t, config.ProcessingConfig{})

		test := &domain.Test{ID: "test-9", Status: domain.TestStatusProcessing}
		f.repo.On("GetTest", mock.Anything, "test-9").Return(test, nil).Once()
		f.repo.On("UpdateTest", mock.Anything, "test-9", mock.MatchedBy(func(p domain.TestPatch) bool {
			return p.Status != nil && *p.Status == domain.TestStatusFailed &&
				p.ErrorMessage != nil && *p.ErrorMessage == "Processing cancelled by user"
		})).Return(nil).Once()

		err := f.svc.CancelProcessing(context.Background(), "test-9")

		require.NoError(t, err)
		f.assertExpectations(t)
	})

	t.Run("rejects a terminal test", func(t *testing.T) {
		f := newProcessingFixture(t, config.ProcessingConfig{})

		test := &domain.Test{ID: "test-10", Status: domain.TestStatusCompleted}
		f.repo.On("GetTest", mock.Anything, "test-10").Return(test, nil).Once()

		err := f.svc.CancelProcessing(context.Background(), "test-10")

		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrInvalidInput, domainErr.Code)
		f.repo.AssertNotCalled(t, "UpdateTest", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})
}
