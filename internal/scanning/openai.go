package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tnishida/keihi-scan/internal/expense"
)

// OpenAI implements the Scanner interface against the OpenAI chat API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a new OpenAI Scanner instance
func NewOpenAI(apiKey string, modelName string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if modelName == "" {
		modelName = openai.GPT4o
	}

	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  modelName,
	}, nil
}

// ScanReceipt sends the receipt image to the chat endpoint and extracts the
// four expense fields. One request per attempt; the caller blocks until
// response or transport error.
func (o *OpenAI) ScanReceipt(imageData []byte, contentType string) (*expense.Record, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))

	resp, err := o.client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Model:       o.model,
		MaxTokens:   maxResponseTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: extractionPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: extractionInstruction,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: dataURI,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, &ScanError{Kind: KindTransport, Err: fmt.Errorf("openai API: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return nil, &ScanError{Kind: KindParse, Err: fmt.Errorf("no response from openai")}
	}

	return finishScan(resp.Choices[0].Message.Content)
}

// Close closes the OpenAI client (no-op for the HTTP-backed client)
func (o *OpenAI) Close() error {
	return nil
}
