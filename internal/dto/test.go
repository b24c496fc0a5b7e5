package dto

import "time"

// UploadResponse is returned after a test file has been accepted for processing.
type UploadResponse struct {
	TestID   string `json:"test_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	FileURL  string `json:"file_url"`
	Filename string `json:"filename"`
}

// QuestionResponse represents a single extracted question in the API response.
type QuestionResponse struct {
	ID             string   `json:"id"`
	QuestionNumber int      `json:"question_number"`
	QuestionText   string   `json:"question_text"`
	QuestionType   string   `json:"question_type"`
	Options        []string `json:"options,omitempty"`
	AIAnswer       string   `json:"ai_answer,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Explanation    string   `json:"explanation,omitempty"`
	ProcessingTime *float64 `json:"processing_time,omitempty"`
}

// TestResponse represents a test in the API response.
type TestResponse struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	OriginalFilename string             `json:"original_filename"`
	FileURL          string             `json:"file_url"`
	Status           string             `json:"status"`
	TotalQuestions   int                `json:"total_questions"`
	ProcessingTime   *float64           `json:"processing_time,omitempty"`
	ErrorMessage     string             `json:"error_message,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	Questions        []QuestionResponse `json:"questions,omitempty"`
}

// TestListResponse wraps a page of tests.
type TestListResponse struct {
	Tests []TestResponse `json:"tests"`
	Total int            `json:"total"`
}

// StatusResponse reports processing progress for a test.
type StatusResponse struct {
	TestID             string   `json:"test_id"`
	Status             string   `json:"status"`
	TotalQuestions     int      `json:"total_questions"`
	AnsweredQuestions  int      `json:"answered_questions"`
	ProgressPercentage float64  `json:"progress_percentage"`
	ProcessingTime     *float64 `json:"processing_time,omitempty"`
	ErrorMessage       string   `json:"error_message,omitempty"`

	// Job fields are populated only while the test is processing.
	CurrentStage  string `json:"current_stage,omitempty"`
	TotalJobs     int    `json:"total_jobs,omitempty"`
	CompletedJobs int    `json:"completed_jobs,omitempty"`
	FailedJobs    int    `json:"failed_jobs,omitempty"`
}

// MessageResponse is a generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error in the API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
