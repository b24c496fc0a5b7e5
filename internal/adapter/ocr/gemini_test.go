package ocr

import (
	"context"
	"errors"
	"os"
	"testing"

	"test-solver/internal/config"
	"test-solver/internal/domain"
	"test-solver/internal/logger"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(config.LoggerConfig{Level: "error"}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type stubVisionModel struct {
	text string
	err  error
}

func (s *stubVisionModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(s.text)}}},
		},
	}, nil
}

func TestExtractText_UnsupportedExtension(t *testing.T) {
	extractor := &GeminiTextExtractor{model: &stubVisionModel{text: "irrelevant"}}

	_, err := extractor.ExtractText(context.Background(), []byte("data"), "notes.docx")

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.ErrExtractionFailure, domainErr.Code)
}

func TestExtractText_ImageSuccess(t *testing.T) {
	extractor := &GeminiTextExtractor{model: &stubVisionModel{text: "1. What is 2+2?\nA) 3\nB) 4"}}

	text, err := extractor.ExtractText(context.Background(), []byte{0x89, 0x50}, "scan.PNG")

	require.NoError(t, err)
	assert.Contains(t, text, "What is 2+2?")
}

func TestExtractText_VisionFailure(t *testing.T) {
	extractor := &GeminiTextExtractor{model: &stubVisionModel{err: errors.New("quota exceeded")}}

	_, err := extractor.ExtractText(context.Background(), []byte{0x89, 0x50}, "scan.jpg")

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.ErrExtractionFailure, domainErr.Code)
}

func TestExtractText_EmptyOCROutput(t *testing.T) {
	extractor := &GeminiTextExtractor{model: &stubVisionModel{text: "   \n  "}}

	_, err := extractor.ExtractText(context.Background(), []byte{0x89, 0x50}, "scan.jpeg")

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.ErrExtractionFailure, domainErr.Code)
}

func TestExtractText_CorruptPDF(t *testing.T) {
	extractor := &GeminiTextExtractor{model: &stubVisionModel{text: "irrelevant"}}

	_, err := extractor.ExtractText(context.Background(), []byte("not a pdf"), "exam.pdf")

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.ErrExtractionFailure, domainErr.Code)
}

func TestCollectText_MalformedResponse(t *testing.T) {
	assert.Equal(t, "", collectText(nil))
	assert.Equal(t, "", collectText(&genai.GenerateContentResponse{}))
	assert.Equal(t, "", collectText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: nil}},
	}))
}
