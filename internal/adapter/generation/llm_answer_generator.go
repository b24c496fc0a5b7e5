package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"test-solver/internal/domain"
	"test-solver/internal/logger"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

const fallbackConfidence = 0.1

// typeInstructions tells the model how to shape its answer per question
// kind.
var typeInstructions = map[domain.QuestionType]string{
	domain.QuestionTypeMultipleChoice: "Select the best answer from the given options. Provide the option text, not just the letter.",
	domain.QuestionTypeShortAnswer:    "Provide a concise, accurate answer in 1-3 sentences.",
	domain.QuestionTypeEssay:          "Provide a comprehensive answer with multiple paragraphs and detailed explanation.",
	domain.QuestionTypeTrueFalse:      "Answer 'True' or 'False' and explain your reasoning.",
	domain.QuestionTypeFillBlank:      "Provide the most appropriate word or phrase to fill the blank.",
	domain.QuestionTypeOther:          "Answer the question using appropriate format based on what's being asked.",
}

// chatLLM is the prompt-in, text-out slice of the langchaingo clients.
type chatLLM interface {
	Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error)
}

// llmAnswerGenerator implements domain.AnswerGenerator. Model and parse
// failures are absorbed into low-confidence fallback solutions so one bad
// question never aborts a batch; the error return fires only when the
// context is done.
type llmAnswerGenerator struct {
	llmClient chatLLM
}

// NewLLMAnswerGenerator creates a new instance of llmAnswerGenerator
func NewLLMAnswerGenerator(llm chatLLM) domain.AnswerGenerator {
	return &llmAnswerGenerator{llmClient: llm}
}

// SolveQuestion implements domain.AnswerGenerator
func (g *llmAnswerGenerator) SolveQuestion(ctx context.Context, req domain.SolveRequest) (*domain.Solution, error) {
	l := logger.Get()

	prompt := buildQuestionPrompt(req)

	rawResponse, err := g.llmClient.Call(ctx, prompt, llms.WithTemperature(0.1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		l.Error("LLM call failed while solving question",
			zap.Error(err),
			zap.String("question", preview(req.QuestionText, 100)))
		return &domain.Solution{
			Answer:      "Unable to answer due to processing error",
			Confidence:  fallbackConfidence,
			Explanation: fmt.Sprintf("An error occurred while processing this question: %v", err),
		}, nil
	}

	solution, parseErr := parseSolution(rawResponse)
	if parseErr != nil {
		l.Error("Failed to parse LLM solution response",
			zap.Error(parseErr),
			zap.String("question", preview(req.QuestionText, 100)),
			zap.String("raw_response", preview(rawResponse, 500)))
		return &domain.Solution{
			Answer:      "Unable to process question due to parsing error",
			Confidence:  fallbackConfidence,
			Explanation: "The AI encountered an error while processing this question.",
		}, nil
	}

	solution.ClampConfidence()

	l.Info("Question solved",
		zap.String("question_type", string(req.QuestionType)),
		zap.Float64("confidence", solution.Confidence))
	return solution, nil
}

// buildQuestionPrompt assembles the solver prompt: role, retrieved
// context, type instruction, question, lettered options, and the JSON
// response contract.
func buildQuestionPrompt(req domain.SolveRequest) string {
	var sb strings.Builder

	sb.WriteString("You are an expert AI assistant that answers test questions across all subjects.\n")
	sb.WriteString("You have access to a broad knowledge base and use step-by-step reasoning.\n\n")

	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		sb.WriteString("RELEVANT CONTEXT:\n")
		sb.WriteString(ctx)
		sb.WriteString("\n\n")
	}

	instruction, ok := typeInstructions[req.QuestionType]
	if !ok {
		instruction = typeInstructions[domain.QuestionTypeOther]
	}
	fmt.Fprintf(&sb, "QUESTION TYPE: %s\n", req.QuestionType)
	fmt.Fprintf(&sb, "INSTRUCTION: %s\n\n", instruction)

	fmt.Fprintf(&sb, "QUESTION: %s\n", req.QuestionText)

	if req.QuestionType == domain.QuestionTypeMultipleChoice && len(req.Options) > 0 {
		sb.WriteString("\nOPTIONS:\n")
		for i, option := range req.Options {
			fmt.Fprintf(&sb, "%c) %s\n", 'A'+i, option)
		}
	}

	sb.WriteString(`
Respond with ONLY a JSON object in the following format:
{
  "answer": "Your direct answer to the question",
  "confidence": 0.85,
  "explanation": "Step-by-step reasoning for your answer"
}

Rules:
1. Confidence must be between 0.0 and 1.0
2. Base your answer on factual knowledge and logical reasoning
3. If you're unsure, indicate lower confidence but still provide your best answer
4. Keep explanations clear and educational
5. For multiple choice, ensure your answer matches one of the provided options exactly`)

	return sb.String()
}

// parseSolution extracts the JSON object from a raw model response,
// tolerating reasoning preambles and <think> blocks around it.
func parseSolution(raw string) (*domain.Solution, error) {
	cleaned := strings.TrimSpace(raw)

	if thinkStart := strings.Index(cleaned, "<think>"); thinkStart != -1 {
		if thinkEnd := strings.Index(cleaned, "</think>"); thinkEnd != -1 && thinkEnd > thinkStart {
			cleaned = cleaned[:thinkStart] + cleaned[thinkEnd+len("</think>"):]
			cleaned = strings.TrimSpace(cleaned)
		}
	}

	jsonStart := strings.Index(cleaned, "{")
	jsonEnd := strings.LastIndex(cleaned, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("no JSON object found in LLM response: %s", preview(cleaned, 200))
	}

	var llmResp struct {
		Answer      string  `json:"answer"`
		Confidence  float64 `json:"confidence"`
		Explanation string  `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(cleaned[jsonStart:jsonEnd+1]), &llmResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON from LLM response: %w", err)
	}

	if strings.TrimSpace(llmResp.Answer) == "" {
		return nil, fmt.Errorf("LLM response contains no answer")
	}

	return &domain.Solution{
		Answer:      llmResp.Answer,
		Confidence:  llmResp.Confidence,
		Explanation: llmResp.Explanation,
	}, nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
