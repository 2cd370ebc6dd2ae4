package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- Address Parser Model Prompts ---
const AddressSystemPrompt = "You are an address parser. Your task is to turn free-form shipping address text into structured JSON. Accuracy matters more than completeness; never invent address components."
const AddressUserPromptFormat = `Parse this address into structured JSON format. Return ONLY the JSON, no other text:

Address text:
%s

Required JSON format:
{
    "name": "Full Name",
    "address1": "Street address with number",
    "address2": "Apartment/Unit if any, otherwise empty string",
    "city": "City name",
    "state": "State abbreviation (e.g. OR, CA)",
    "zip": "ZIP code"
}

Return only valid JSON, no markdown or explanations.`

// --- Vision Order Extractor Model Prompts ---
const VisionSystemPrompt = "You are an e-commerce order screenshot analyst. You extract order metadata from screenshots and output your response as a single valid JSON object."
const VisionUserPrompt = `Analyze this screenshot and extract order/e-commerce data. Look for these specific fields and return as JSON:

Required fields to find:
- Status (e.g., "Paid", "Processing", "Shipped", etc.)
- Paid On (date when payment was made)
- Customer (customer name or email)
- Listing (product/item name)
- Quantity (number of items)
- Shipping (shipping method or cost)
- Order Total (total amount paid)

Return ONLY JSON format:
{
    "status": "extracted status or empty string",
    "paid_on": "extracted date or empty string",
    "customer": "extracted customer info or empty string",
    "listing": "extracted product name or empty string",
    "quantity": "extracted quantity or empty string",
    "shipping": "extracted shipping info or empty string",
    "order_total": "extracted total amount or empty string"
}

If you can't find a field, use an empty string. Return only valid JSON, no explanations.`

// VertexClient hands out generative models configured for our extraction
// calls. Model names are resolved per call because the active model is an
// operator-mutable setting.
type VertexClient struct {
	baseClient *genai.Client
}

// NewVertexClient creates the shared Vertex AI client.
func NewVertexClient(ctx context.Context, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexClient{baseClient: baseClient}, nil
}

// AddressModel returns a model configured for deterministic JSON address
// parsing. Forcing the JSON MIME type is a critical setting for this model;
// the response still gets fence-stripped defensively downstream.
func (c *VertexClient) AddressModel(name string) *genai.GenerativeModel {
	model := c.baseClient.GenerativeModel(name)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(AddressSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
		MaxOutputTokens:  genai.Ptr[int32](500),
	}
	return model
}

// VisionModel returns a model configured for screenshot order extraction.
func (c *VertexClient) VisionModel(name string) *genai.GenerativeModel {
	model := c.baseClient.GenerativeModel(name)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(VisionSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
	return model
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
