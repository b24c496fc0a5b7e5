package domain

import (
	"strings"
	"time"
)

// TestStatus is the lifecycle state of an uploaded test.
// Transitions are monotonic within one processing run:
// pending -> processing -> completed | failed.
type TestStatus string

const (
	TestStatusPending    TestStatus = "pending"
	TestStatusProcessing TestStatus = "processing"
	TestStatusCompleted  TestStatus = "completed"
	TestStatusFailed     TestStatus = "failed"
)

// IsTerminal reports whether the status is a final state of a run.
func (s TestStatus) IsTerminal() bool {
	return s == TestStatusCompleted || s == TestStatusFailed
}

// QuestionType classifies an extracted question.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
	QuestionTypeEssay          QuestionType = "essay"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeFillBlank      QuestionType = "fill_blank"
	QuestionTypeOther          QuestionType = "other"
)

// questionTypeAliases maps the type strings a model tends to emit onto the
// canonical enum. Lookups happen after lowercasing and separator folding.
var questionTypeAliases = map[string]QuestionType{
	"multiple_choice":   QuestionTypeMultipleChoice,
	"multichoice":       QuestionTypeMultipleChoice,
	"mc":                QuestionTypeMultipleChoice,
	"short_answer":      QuestionTypeShortAnswer,
	"short":             QuestionTypeShortAnswer,
	"essay":             QuestionTypeEssay,
	"long_answer":       QuestionTypeEssay,
	"true_false":        QuestionTypeTrueFalse,
	"boolean":           QuestionTypeTrueFalse,
	"tf":                QuestionTypeTrueFalse,
	"fill_blank":        QuestionTypeFillBlank,
	"fill_in":           QuestionTypeFillBlank,
	"fill_in_the_blank": QuestionTypeFillBlank,
	"blank":             QuestionTypeFillBlank,
	"other":             QuestionTypeOther,
}

// NormalizeQuestionType maps a raw type string to a QuestionType,
// defaulting to QuestionTypeOther for anything unrecognized.
func NormalizeQuestionType(raw string) QuestionType {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	if t, ok := questionTypeAliases[key]; ok {
		return t
	}
	return QuestionTypeOther
}

// Test represents one uploaded document and its processing state.
type Test struct {
	ID               string
	Title            string
	FileURL          string
	OriginalFilename string
	CreatedBy        string
	Status           TestStatus
	TotalQuestions   int
	ProcessingTime   float64 // seconds
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Questions        []*Question
}

// NewTest creates a pending Test for a freshly uploaded file.
func NewTest(id, title, fileURL, originalFilename, createdBy string) *Test {
	now := time.Now()
	return &Test{
		ID:               id,
		Title:            title,
		FileURL:          fileURL,
		OriginalFilename: originalFilename,
		CreatedBy:        createdBy,
		Status:           TestStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Validate validates the test
func (t *Test) Validate() error {
	if t.Title == "" {
		return NewInvalidInputError("title is required")
	}
	if t.FileURL == "" {
		return NewInvalidInputError("file URL is required")
	}
	if t.CreatedBy == "" {
		return NewInvalidInputError("created_by is required")
	}
	return nil
}

// Question is one extracted item of a test. Answer fields are written at
// most once per processing run, by question number.
type Question struct {
	ID             string
	TestID         string
	QuestionNumber int
	QuestionText   string
	QuestionType   QuestionType
	Options        []string
	AIAnswer       string
	Confidence     float64
	Explanation    string
	ProcessingTime float64 // seconds
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Answered reports whether an answer has been persisted for the question.
func (q *Question) Answered() bool {
	return q.AIAnswer != ""
}

// TestPatch enumerates the updatable fields of a Test. Only non-nil
// fields are written.
type TestPatch struct {
	Status         *TestStatus
	TotalQuestions *int
	ProcessingTime *float64
	ErrorMessage   *string
}

// IsEmpty reports whether the patch would change nothing.
func (p TestPatch) IsEmpty() bool {
	return p.Status == nil && p.TotalQuestions == nil && p.ProcessingTime == nil && p.ErrorMessage == nil
}

// AnswerUpdate carries the answer fields written to a question during
// solving. Writes are idempotent per (test, question number).
type AnswerUpdate struct {
	Answer         string
	Confidence     float64
	Explanation    string
	ProcessingTime float64
}

// Solution is what the answer generator produces for one question.
type Solution struct {
	Answer      string
	Confidence  float64
	Explanation string
}

// ClampConfidence forces the confidence into [0, 1].
func (s *Solution) ClampConfidence() {
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 1 {
		s.Confidence = 1
	}
}

// JobStatus is the lifecycle state of a ProcessingJob.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ProcessingJob tracks one pipeline stage of a test run. Jobs exist for
// progress reporting only; pipeline correctness does not depend on them.
type ProcessingJob struct {
	ID           string
	TestID       string
	JobType      string
	Status       JobStatus
	StartedAt    time.Time
	CompletedAt  time.Time
	ErrorMessage string
	Metadata     map[string]string
	CreatedAt    time.Time
}
