package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"test-solver/internal/domain"
	"test-solver/internal/logger"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// OCR output tends to glue words together and drift on question markers.
var (
	whitespaceRe     = regexp.MustCompile(`\s+`)
	missingSpaceRe   = regexp.MustCompile(`([a-z])([A-Z])`)
	numberDotRe      = regexp.MustCompile(`(\d+)\.([A-Za-z])`)
	optionParenRe    = regexp.MustCompile(`([a-z])\)([A-Za-z])`)
	questionMarkerRe = regexp.MustCompile(`(?i)Question\s*(\d+)`)
	shortMarkerRe    = regexp.MustCompile(`(?i)Q\s*(\d+)`)
)

const extractionPrompt = `Extract all questions from the following text and structure them as JSON.

For each question, identify:
1. The question number (if available, otherwise assign sequentially)
2. The complete question text
3. The question type: multiple_choice, short_answer, essay, true_false, fill_blank, or other
4. For multiple choice questions, extract all options (A, B, C, D, E, etc.)

Return a JSON array where each question follows this structure:
{
    "question_number": 1,
    "question_text": "What is the capital of France?",
    "question_type": "multiple_choice",
    "options": ["Paris", "London", "Berlin", "Madrid"]
}

Rules:
- Keep the original question text exactly as written
- For multiple choice, extract only the option text, not the letter markers (A), B), etc.)
- If no clear question type can be determined, use "other"
- Number questions sequentially starting from 1 if no numbers are present
- Include all questions found, even if partial or unclear

Text to process:
%s

Return only the JSON array, no additional text.`

// chatLLM is the prompt-in, text-out slice of the langchaingo clients.
type chatLLM interface {
	Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error)
}

// extractedQuestion is the wire shape the model is asked to emit. Options
// are accepted as either an array or a newline-joined string.
type extractedQuestion struct {
	QuestionNumber int             `json:"question_number"`
	QuestionText   string          `json:"question_text"`
	QuestionType   string          `json:"question_type"`
	Options        json.RawMessage `json:"options"`
}

// llmQuestionExtractor implements domain.QuestionExtractor. Individual
// malformed entries are skipped; extraction fails only when nothing
// valid survives.
type llmQuestionExtractor struct {
	llmClient chatLLM
}

// NewLLMQuestionExtractor creates a new instance of llmQuestionExtractor
func NewLLMQuestionExtractor(llm chatLLM) domain.QuestionExtractor {
	return &llmQuestionExtractor{llmClient: llm}
}

// ExtractQuestions implements domain.QuestionExtractor
func (e *llmQuestionExtractor) ExtractQuestions(ctx context.Context, rawText, testID string) ([]*domain.Question, error) {
	l := logger.Get()
	l.Info("Starting question extraction",
		zap.String("test_id", testID),
		zap.Int("text_length", len(rawText)))

	cleanedText := preprocessText(rawText)

	extracted, err := e.extractWithLLM(ctx, cleanedText)
	if err != nil {
		return nil, err
	}

	questions := validateQuestions(extracted, testID)
	if len(questions) == 0 {
		return nil, domain.NewExtractionError("no valid questions could be extracted from the text", nil)
	}

	l.Info("Question extraction completed",
		zap.String("test_id", testID),
		zap.Int("questions_extracted", len(questions)))
	return questions, nil
}

// preprocessText cleans OCR artifacts before the text reaches the model.
func preprocessText(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")

	text = missingSpaceRe.ReplaceAllString(text, "$1 $2")
	text = numberDotRe.ReplaceAllString(text, "$1. $2")
	text = optionParenRe.ReplaceAllString(text, "$1) $2")

	text = questionMarkerRe.ReplaceAllString(text, "Question $1:")
	text = shortMarkerRe.ReplaceAllString(text, "Question $1:")

	return strings.TrimSpace(text)
}

func (e *llmQuestionExtractor) extractWithLLM(ctx context.Context, text string) ([]extractedQuestion, error) {
	rawResponse, err := e.llmClient.Call(ctx, fmt.Sprintf(extractionPrompt, text), llms.WithTemperature(0.1))
	if err != nil {
		return nil, domain.NewExtractionError("LLM question extraction call failed", err)
	}

	jsonArray, err := locateJSONArray(rawResponse)
	if err != nil {
		logger.Get().Error("No JSON array in extraction response",
			zap.String("raw_response", preview(rawResponse, 500)))
		return nil, domain.NewExtractionError("invalid JSON response from LLM", err)
	}

	var extracted []extractedQuestion
	if err := json.Unmarshal([]byte(jsonArray), &extracted); err != nil {
		return nil, domain.NewExtractionError("invalid JSON response from LLM", err)
	}
	return extracted, nil
}

// locateJSONArray finds the outermost JSON array in a model response,
// tolerating prose and <think> blocks around it.
func locateJSONArray(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)

	if thinkStart := strings.Index(cleaned, "<think>"); thinkStart != -1 {
		if thinkEnd := strings.Index(cleaned, "</think>"); thinkEnd != -1 && thinkEnd > thinkStart {
			cleaned = cleaned[:thinkStart] + cleaned[thinkEnd+len("</think>"):]
			cleaned = strings.TrimSpace(cleaned)
		}
	}

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON array found in LLM response")
	}
	return cleaned[start : end+1], nil
}

// validateQuestions converts raw model output into domain questions.
// Entries with empty text are dropped, unknown types demote to "other",
// and multiple-choice entries without options demote as well.
func validateQuestions(extracted []extractedQuestion, testID string) []*domain.Question {
	l := logger.Get()
	questions := make([]*domain.Question, 0, len(extracted))

	for i, eq := range extracted {
		questionNumber := eq.QuestionNumber
		if questionNumber <= 0 {
			questionNumber = i + 1
		}

		questionText := strings.TrimSpace(eq.QuestionText)
		if questionText == "" {
			l.Warn("Skipping question with empty text",
				zap.String("test_id", testID),
				zap.Int("question_number", questionNumber))
			continue
		}

		questionType := domain.NormalizeQuestionType(eq.QuestionType)
		options := coerceOptions(eq.Options)

		if questionType == domain.QuestionTypeMultipleChoice && len(options) == 0 {
			l.Warn("Multiple choice question has no options, demoting to other",
				zap.String("test_id", testID),
				zap.Int("question_number", questionNumber))
			questionType = domain.QuestionTypeOther
		}

		questions = append(questions, &domain.Question{
			TestID:         testID,
			QuestionNumber: questionNumber,
			QuestionText:   questionText,
			QuestionType:   questionType,
			Options:        options,
		})
	}

	return questions
}

// coerceOptions accepts both the array form and a newline-joined string.
func coerceOptions(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil {
		return asList
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		var options []string
		for _, line := range strings.Split(asString, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				options = append(options, trimmed)
			}
		}
		return options
	}

	return nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
