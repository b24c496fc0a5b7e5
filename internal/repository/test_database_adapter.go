package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"test-solver/internal/domain"
	"test-solver/internal/repository/models"
	"test-solver/internal/util"

	"github.com/jmoiron/sqlx"
)

const testColumns = `id, title, file_url, original_filename, created_by, status,
		total_questions, processing_time, error_message, created_at, updated_at`

const questionColumns = `id, test_id, question_number, question_text, question_type,
		options, ai_answer, confidence, explanation, processing_time, created_at, updated_at`

// TestDatabaseAdapter implements domain.TestRepository using sqlx.DB
type TestDatabaseAdapter struct {
	db *sqlx.DB
}

// NewTestDatabaseAdapter creates a new instance of TestDatabaseAdapter
func NewTestDatabaseAdapter(db *sqlx.DB) domain.TestRepository {
	return &TestDatabaseAdapter{db: db}
}

// CreateTest implements domain.TestRepository
func (a *TestDatabaseAdapter) CreateTest(ctx context.Context, test *domain.Test) error {
	model := toModelTest(test)
	if model == nil {
		return domain.NewStorageError("cannot create nil test", nil)
	}
	if model.ID == "" {
		model.ID = util.NewULID()
	}
	now := time.Now()
	model.CreatedAt = now
	model.UpdatedAt = now

	query := `INSERT INTO tests (
		id, title, file_url, original_filename, created_by, status,
		total_questions, processing_time, error_message, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := a.db.ExecContext(ctx, query,
		model.ID,
		model.Title,
		model.FileURL,
		model.OriginalFilename,
		model.CreatedBy,
		model.Status,
		model.TotalQuestions,
		model.ProcessingTime,
		model.ErrorMessage,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return domain.NewStorageError("failed to create test", err)
	}

	test.ID = model.ID
	test.CreatedAt = model.CreatedAt
	test.UpdatedAt = model.UpdatedAt
	return nil
}

// GetTest implements domain.TestRepository
func (a *TestDatabaseAdapter) GetTest(ctx context.Context, id string) (*domain.Test, error) {
	var model models.Test
	query := `SELECT ` + testColumns + ` FROM tests WHERE id = $1`

	err := a.db.GetContext(ctx, &model, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, domain.NewStorageError(fmt.Sprintf("failed to get test %s", id), err)
	}
	return toDomainTest(&model), nil
}

// GetTestWithQuestions implements domain.TestRepository
func (a *TestDatabaseAdapter) GetTestWithQuestions(ctx context.Context, id string) (*domain.Test, error) {
	test, err := a.GetTest(ctx, id)
	if err != nil || test == nil {
		return test, err
	}

	questions, err := a.GetTestQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	test.Questions = questions
	return test, nil
}

// ListTests implements domain.TestRepository
func (a *TestDatabaseAdapter) ListTests(ctx context.Context, createdBy string) ([]*domain.Test, error) {
	var modelTests []models.Test
	query := `SELECT ` + testColumns + ` FROM tests WHERE created_by = $1 ORDER BY created_at DESC`

	err := a.db.SelectContext(ctx, &modelTests, query, createdBy)
	if err != nil {
		return nil, domain.NewStorageError("failed to list tests", err)
	}

	tests := make([]*domain.Test, 0, len(modelTests))
	for i := range modelTests {
		tests = append(tests, toDomainTest(&modelTests[i]))
	}
	return tests, nil
}

// UpdateTest implements domain.TestRepository
func (a *TestDatabaseAdapter) UpdateTest(ctx context.Context, id string, patch domain.TestPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	setClauses := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	argIdx := 1

	if patch.Status != nil {
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*patch.Status))
		argIdx++
	}
	if patch.TotalQuestions != nil {
		setClauses = append(setClauses, fmt.Sprintf("total_questions = $%d", argIdx))
		args = append(args, *patch.TotalQuestions)
		argIdx++
	}
	if patch.ProcessingTime != nil {
		setClauses = append(setClauses, fmt.Sprintf("processing_time = $%d", argIdx))
		args = append(args, *patch.ProcessingTime)
		argIdx++
	}
	if patch.ErrorMessage != nil {
		setClauses = append(setClauses, fmt.Sprintf("error_message = $%d", argIdx))
		args = append(args, util.StringToNullString(*patch.ErrorMessage))
		argIdx++
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argIdx))
	args = append(args, time.Now())
	argIdx++

	query := fmt.Sprintf("UPDATE tests SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argIdx)
	args = append(args, id)

	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.NewStorageError(fmt.Sprintf("failed to update test %s", id), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.NewStorageError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return domain.NewTestNotFoundError(id)
	}
	return nil
}

// DeleteTest implements domain.TestRepository
func (a *TestDatabaseAdapter) DeleteTest(ctx context.Context, id string) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM tests WHERE id = $1`, id)
	if err != nil {
		return domain.NewStorageError(fmt.Sprintf("failed to delete test %s", id), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.NewStorageError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return domain.NewTestNotFoundError(id)
	}
	return nil
}

// CreateQuestions implements domain.TestRepository
func (a *TestDatabaseAdapter) CreateQuestions(ctx context.Context, questions []*domain.Question) error {
	if len(questions) == 0 {
		return nil
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO questions (
		id, test_id, question_number, question_text, question_type,
		options, ai_answer, confidence, explanation, processing_time, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	now := time.Now()
	for _, q := range questions {
		model := toModelQuestion(q)
		if model.ID == "" {
			model.ID = util.NewULID()
		}
		model.CreatedAt = now
		model.UpdatedAt = now

		_, err := tx.ExecContext(ctx, query,
			model.ID,
			model.TestID,
			model.QuestionNumber,
			model.QuestionText,
			model.QuestionType,
			model.Options,
			model.AIAnswer,
			model.Confidence,
			model.Explanation,
			model.ProcessingTime,
			model.CreatedAt,
			model.UpdatedAt,
		)
		if err != nil {
			return domain.NewStorageError(fmt.Sprintf("failed to insert question %d", q.QuestionNumber), err)
		}

		q.ID = model.ID
		q.CreatedAt = model.CreatedAt
		q.UpdatedAt = model.UpdatedAt
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("failed to commit questions", err)
	}
	return nil
}

// GetTestQuestions implements domain.TestRepository
func (a *TestDatabaseAdapter) GetTestQuestions(ctx context.Context, testID string) ([]*domain.Question, error) {
	var modelQuestions []models.Question
	query := `SELECT ` + questionColumns + ` FROM questions WHERE test_id = $1 ORDER BY question_number ASC`

	err := a.db.SelectContext(ctx, &modelQuestions, query, testID)
	if err != nil {
		return nil, domain.NewStorageError(fmt.Sprintf("failed to get questions for test %s", testID), err)
	}

	questions := make([]*domain.Question, 0, len(modelQuestions))
	for i := range modelQuestions {
		questions = append(questions, toDomainQuestion(&modelQuestions[i]))
	}
	return questions, nil
}

// UpdateQuestionAnswer implements domain.TestRepository
func (a *TestDatabaseAdapter) UpdateQuestionAnswer(ctx context.Context, testID string, questionNumber int, update domain.AnswerUpdate) error {
	query := `UPDATE questions SET
		ai_answer = $1,
		confidence = $2,
		explanation = $3,
		processing_time = $4,
		updated_at = $5
	WHERE test_id = $6 AND question_number = $7`

	result, err := a.db.ExecContext(ctx, query,
		util.StringToNullString(update.Answer),
		update.Confidence,
		util.StringToNullString(update.Explanation),
		update.ProcessingTime,
		time.Now(),
		testID,
		questionNumber,
	)
	if err != nil {
		return domain.NewStorageError(fmt.Sprintf("failed to update answer for question %d of test %s", questionNumber, testID), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return domain.NewStorageError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return domain.NewStorageError(fmt.Sprintf("question %d not found for test %s", questionNumber, testID), nil)
	}
	return nil
}

// CreateProcessingJob implements domain.TestRepository
func (a *TestDatabaseAdapter) CreateProcessingJob(ctx context.Context, job *domain.ProcessingJob) error {
	model := toModelProcessingJob(job)
	if model.ID == "" {
		model.ID = util.NewULID()
	}
	model.CreatedAt = time.Now()

	query := `INSERT INTO processing_jobs (
		id, test_id, job_type, status, started_at, completed_at, error_message, metadata, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := a.db.ExecContext(ctx, query,
		model.ID,
		model.TestID,
		model.JobType,
		model.Status,
		model.StartedAt,
		model.CompletedAt,
		model.ErrorMessage,
		model.Metadata,
		model.CreatedAt,
	)
	if err != nil {
		return domain.NewStorageError("failed to create processing job", err)
	}

	job.ID = model.ID
	job.CreatedAt = model.CreatedAt
	return nil
}

// GetProcessingJobs implements domain.TestRepository
func (a *TestDatabaseAdapter) GetProcessingJobs(ctx context.Context, testID string) ([]*domain.ProcessingJob, error) {
	var modelJobs []models.ProcessingJob
	query := `SELECT id, test_id, job_type, status, started_at, completed_at, error_message, metadata, created_at
	FROM processing_jobs WHERE test_id = $1 ORDER BY created_at ASC`

	err := a.db.SelectContext(ctx, &modelJobs, query, testID)
	if err != nil {
		return nil, domain.NewStorageError(fmt.Sprintf("failed to get processing jobs for test %s", testID), err)
	}

	jobs := make([]*domain.ProcessingJob, 0, len(modelJobs))
	for i := range modelJobs {
		jobs = append(jobs, toDomainProcessingJob(&modelJobs[i]))
	}
	return jobs, nil
}

// Helper functions for model conversion

func toDomainTest(m *models.Test) *domain.Test {
	if m == nil {
		return nil
	}
	t := &domain.Test{
		ID:               m.ID,
		Title:            m.Title,
		FileURL:          m.FileURL,
		OriginalFilename: m.OriginalFilename,
		CreatedBy:        m.CreatedBy,
		Status:           domain.TestStatus(m.Status),
		TotalQuestions:   m.TotalQuestions,
		ErrorMessage:     util.NullStringToString(m.ErrorMessage),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.ProcessingTime.Valid {
		t.ProcessingTime = m.ProcessingTime.Float64
	}
	return t
}

func toModelTest(d *domain.Test) *models.Test {
	if d == nil {
		return nil
	}
	m := &models.Test{
		ID:               d.ID,
		Title:            d.Title,
		FileURL:          d.FileURL,
		OriginalFilename: d.OriginalFilename,
		CreatedBy:        d.CreatedBy,
		Status:           string(d.Status),
		TotalQuestions:   d.TotalQuestions,
		ErrorMessage:     util.StringToNullString(d.ErrorMessage),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if d.ProcessingTime > 0 {
		m.ProcessingTime = sql.NullFloat64{Float64: d.ProcessingTime, Valid: true}
	}
	return m
}

func toDomainQuestion(m *models.Question) *domain.Question {
	if m == nil {
		return nil
	}
	q := &domain.Question{
		ID:             m.ID,
		TestID:         m.TestID,
		QuestionNumber: m.QuestionNumber,
		QuestionText:   m.QuestionText,
		QuestionType:   domain.QuestionType(m.QuestionType),
		Options:        []string(m.Options),
		AIAnswer:       util.NullStringToString(m.AIAnswer),
		Explanation:    util.NullStringToString(m.Explanation),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Confidence.Valid {
		q.Confidence = m.Confidence.Float64
	}
	if m.ProcessingTime.Valid {
		q.ProcessingTime = m.ProcessingTime.Float64
	}
	return q
}

func toModelQuestion(d *domain.Question) *models.Question {
	if d == nil {
		return nil
	}
	m := &models.Question{
		ID:             d.ID,
		TestID:         d.TestID,
		QuestionNumber: d.QuestionNumber,
		QuestionText:   d.QuestionText,
		QuestionType:   string(d.QuestionType),
		Options:        models.StringSlice(d.Options),
		AIAnswer:       util.StringToNullString(d.AIAnswer),
		Explanation:    util.StringToNullString(d.Explanation),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.AIAnswer != "" {
		m.Confidence = sql.NullFloat64{Float64: d.Confidence, Valid: true}
		m.ProcessingTime = sql.NullFloat64{Float64: d.ProcessingTime, Valid: true}
	}
	return m
}

func toModelProcessingJob(d *domain.ProcessingJob) *models.ProcessingJob {
	if d == nil {
		return nil
	}
	return &models.ProcessingJob{
		ID:           d.ID,
		TestID:       d.TestID,
		JobType:      d.JobType,
		Status:       string(d.Status),
		StartedAt:    util.TimeToNullTime(d.StartedAt),
		CompletedAt:  util.TimeToNullTime(d.CompletedAt),
		ErrorMessage: util.StringToNullString(d.ErrorMessage),
		Metadata:     models.MetadataMap(d.Metadata),
		CreatedAt:    d.CreatedAt,
	}
}

func toDomainProcessingJob(m *models.ProcessingJob) *domain.ProcessingJob {
	if m == nil {
		return nil
	}
	j := &domain.ProcessingJob{
		ID:           m.ID,
		TestID:       m.TestID,
		JobType:      m.JobType,
		Status:       domain.JobStatus(m.Status),
		ErrorMessage: util.NullStringToString(m.ErrorMessage),
		Metadata:     map[string]string(m.Metadata),
		CreatedAt:    m.CreatedAt,
	}
	if m.StartedAt.Valid {
		j.StartedAt = m.StartedAt.Time
	}
	if m.CompletedAt.Valid {
		j.CompletedAt = m.CompletedAt.Time
	}
	return j
}
