package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StringSlice stores a string array as a JSON text column.
type StringSlice []string

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	jsonData, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	var bytesToParse []byte

	switch v := value.(type) {
	case []byte:
		bytesToParse = v
	case string:
		bytesToParse = []byte(v)
	default:
		return errors.New("StringSlice Scan: unsupported type " + fmt.Sprintf("%T", value))
	}

	if len(bytesToParse) == 0 || string(bytesToParse) == "null" {
		*s = StringSlice{}
		return nil
	}

	return json.Unmarshal(bytesToParse, s)
}

// MetadataMap stores a string map as a JSON text column.
type MetadataMap map[string]string

// Value implements the driver.Valuer interface
func (m MetadataMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	jsonData, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

// Scan implements the sql.Scanner interface
func (m *MetadataMap) Scan(value interface{}) error {
	if value == nil {
		*m = MetadataMap{}
		return nil
	}

	var bytesToParse []byte

	switch v := value.(type) {
	case []byte:
		bytesToParse = v
	case string:
		bytesToParse = []byte(v)
	default:
		return errors.New("MetadataMap Scan: unsupported type " + fmt.Sprintf("%T", value))
	}

	if len(bytesToParse) == 0 || string(bytesToParse) == "null" {
		*m = MetadataMap{}
		return nil
	}

	return json.Unmarshal(bytesToParse, m)
}

// Test is the database model for the tests table.
type Test struct {
	ID               string          `db:"id"`
	Title            string          `db:"title"`
	FileURL          string          `db:"file_url"`
	OriginalFilename string          `db:"original_filename"`
	CreatedBy        string          `db:"created_by"`
	Status           string          `db:"status"`
	TotalQuestions   int             `db:"total_questions"`
	ProcessingTime   sql.NullFloat64 `db:"processing_time"`
	ErrorMessage     sql.NullString  `db:"error_message"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// Question is the database model for the questions table.
type Question struct {
	ID             string          `db:"id"`
	TestID         string          `db:"test_id"`
	QuestionNumber int             `db:"question_number"`
	QuestionText   string          `db:"question_text"`
	QuestionType   string          `db:"question_type"`
	Options        StringSlice     `db:"options"`
	AIAnswer       sql.NullString  `db:"ai_answer"`
	Confidence     sql.NullFloat64 `db:"confidence"`
	Explanation    sql.NullString  `db:"explanation"`
	ProcessingTime sql.NullFloat64 `db:"processing_time"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// ProcessingJob is the database model for the processing_jobs table.
type ProcessingJob struct {
	ID           string         `db:"id"`
	TestID       string         `db:"test_id"`
	JobType      string         `db:"job_type"`
	Status       string         `db:"status"`
	StartedAt    sql.NullTime   `db:"started_at"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
	ErrorMessage sql.NullString `db:"error_message"`
	Metadata     MetadataMap    `db:"metadata"`
	CreatedAt    time.Time      `db:"created_at"`
}

// KnowledgeBase is the database model for the knowledge_base table.
// The embedding column is a pgvector and never scanned back out; the
// similarity value is computed in SQL.
type KnowledgeBase struct {
	ID         string         `db:"id"`
	Title      string         `db:"title"`
	Content    string         `db:"content"`
	SourceURL  sql.NullString `db:"source_url"`
	Category   sql.NullString `db:"category"`
	Similarity float64        `db:"similarity"`
	CreatedAt  time.Time      `db:"created_at"`
}
