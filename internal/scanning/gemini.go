package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/tnishida/keihi-scan/internal/expense"
)

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetMaxOutputTokens(maxResponseTokens)
	model.SetTemperature(temperature)

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// ScanReceipt analyzes a receipt image and extracts the four expense fields
func (g *Gemini) ScanReceipt(imageData []byte, contentType string) (*expense.Record, error) {
	// Gemini wants one wire format; hand it PNG regardless of the upload
	finalImageData, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, &ScanError{Kind: KindValidation, Err: err}
	}

	parts := []genai.Part{
		genai.ImageData("png", finalImageData),
		genai.Text(extractionPrompt + "\n\n" + extractionInstruction),
	}

	resp, err := g.model.GenerateContent(context.Background(), parts...)
	if err != nil {
		return nil, &ScanError{Kind: KindTransport, Err: fmt.Errorf("generating content: %w", err)}
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &ScanError{Kind: KindParse, Err: fmt.Errorf("no response from gemini")}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return finishScan(responseText.String())
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
