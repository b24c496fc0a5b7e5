package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"path/filepath"
	"strings"

	"test-solver/internal/config"
	"test-solver/internal/domain"
	"test-solver/internal/logger"

	"github.com/gen2brain/go-fitz"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const ocrPrompt = `Extract ALL text from this image exactly as it appears.
Preserve question numbers, option labels (A, B, C, D...), and line breaks.
Do not summarize, translate, or add commentary. Return only the extracted text.`

// imageExtensions maps supported image file extensions onto the format
// names the vision API expects.
var imageExtensions = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".tiff": "tiff",
	".bmp":  "bmp",
}

// visionModel is the slice of *genai.GenerativeModel this package uses.
type visionModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiTextExtractor implements domain.TextExtractor with Gemini vision
// OCR. PDFs are rasterized page by page before being sent to the model.
type GeminiTextExtractor struct {
	model visionModel
}

// NewGeminiTextExtractor creates a Gemini-backed text extractor.
func NewGeminiTextExtractor(ctx context.Context, cfg config.ProcessingConfig) (domain.TextExtractor, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	modelName := cfg.GeminiVisionModel
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiTextExtractor{model: client.GenerativeModel(modelName)}, nil
}

// ExtractText implements domain.TextExtractor. The file kind is chosen by
// filename extension; unsupported kinds are an extraction failure.
func (e *GeminiTextExtractor) ExtractText(ctx context.Context, data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case ext == ".pdf":
		return e.extractFromPDF(ctx, data)
	case imageExtensions[ext] != "":
		return e.ocrImage(ctx, imageExtensions[ext], data)
	default:
		return "", domain.NewExtractionError(fmt.Sprintf("unsupported file type: %s", ext), nil)
	}
}

// extractFromPDF rasterizes every page and OCRs them in order. Page texts
// are joined under per-page markers so question numbering survives page
// boundaries.
func (e *GeminiTextExtractor) extractFromPDF(ctx context.Context, data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", domain.NewExtractionError("failed to open PDF", err)
	}
	defer doc.Close()

	totalPages := doc.NumPage()
	if totalPages == 0 {
		return "", domain.NewExtractionError("PDF contains no pages", nil)
	}

	var sb strings.Builder
	for i := 0; i < totalPages; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return "", domain.NewExtractionError(fmt.Sprintf("failed to rasterize page %d", i+1), err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return "", domain.NewExtractionError(fmt.Sprintf("failed to encode page %d", i+1), err)
		}

		pageText, err := e.ocrImage(ctx, "png", buf.Bytes())
		if err != nil {
			return "", err
		}

		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n", i+1)
		sb.WriteString(pageText)
	}

	logger.Get().Info("Extracted text from PDF", zap.Int("pages", totalPages))
	return sb.String(), nil
}

func (e *GeminiTextExtractor) ocrImage(ctx context.Context, format string, data []byte) (string, error) {
	resp, err := e.model.GenerateContent(ctx,
		genai.ImageData(format, data),
		genai.Text(ocrPrompt),
	)
	if err != nil {
		return "", domain.NewExtractionError("vision OCR request failed", err)
	}

	text := collectText(resp)
	if strings.TrimSpace(text) == "" {
		return "", domain.NewExtractionError("vision OCR returned no text", nil)
	}
	return text, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}
