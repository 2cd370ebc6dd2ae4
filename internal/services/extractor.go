package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/captnocap/copy-pasta/internal/gcp"
	"github.com/captnocap/copy-pasta/internal/models"
)

// A timeout surfaces as a terminal failure for the stage; there are no
// retries.
const (
	addressParseTimeout = 15 * time.Second
	visionTimeout       = 30 * time.Second
)

// Extractor turns decrypted text and screenshots into structured order data.
// The model name is passed per call; see ModelHolder.
type Extractor interface {
	ParseAddress(ctx context.Context, text, model string) (*models.ParsedAddress, error)
	ExtractOrderData(ctx context.Context, png []byte, model string) (models.EnhancedOrderData, error)
}

// VertexExtractor implements Extractor on Vertex AI Gemini models.
type VertexExtractor struct {
	client *gcp.VertexClient
}

func NewVertexExtractor(client *gcp.VertexClient) *VertexExtractor {
	return &VertexExtractor{client: client}
}

// ParseAddress runs the text-completion address parse. Any failure here,
// including a malformed response, is fatal to the intake.
func (e *VertexExtractor) ParseAddress(ctx context.Context, text, model string) (*models.ParsedAddress, error) {
	ctx, cancel := context.WithTimeout(ctx, addressParseTimeout)
	defer cancel()

	prompt := genai.Text(fmt.Sprintf(gcp.AddressUserPromptFormat, text))
	resp, err := e.client.AddressModel(model).GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("address completion call failed: %w", err)
	}

	content := extractJSONContent(resp)
	if content == "" {
		return nil, fmt.Errorf("%w: empty model response", ErrExtraction)
	}
	var addr models.ParsedAddress
	if err := json.Unmarshal([]byte(content), &addr); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrExtraction, err)
	}
	return &addr, nil
}

// ExtractOrderData runs the vision completion over an inline PNG. Callers
// treat failure as non-fatal enrichment loss.
func (e *VertexExtractor) ExtractOrderData(ctx context.Context, png []byte, model string) (models.EnhancedOrderData, error) {
	ctx, cancel := context.WithTimeout(ctx, visionTimeout)
	defer cancel()

	resp, err := e.client.VisionModel(model).GenerateContent(ctx,
		genai.ImageData("png", png),
		genai.Text(gcp.VisionUserPrompt),
	)
	if err != nil {
		return models.EnhancedOrderData{}, fmt.Errorf("vision completion call failed: %w", err)
	}

	content := extractJSONContent(resp)
	if content == "" {
		return models.EnhancedOrderData{}, fmt.Errorf("empty vision model response")
	}
	var data models.EnhancedOrderData
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return models.EnhancedOrderData{}, fmt.Errorf("malformed vision response: %w", err)
	}
	return data, nil
}

// extractJSONContent concatenates the response's text parts and strips
// markdown fences the model sometimes wraps JSON in despite the MIME setting.
func extractJSONContent(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	content := strings.TrimSpace(b.String())
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
