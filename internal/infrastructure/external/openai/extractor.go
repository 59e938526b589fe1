package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
)

const systemPrompt = "You read supplier invoices and extract payment details. Always respond with a single valid JSON object."

const extractionPrompt = `Extract the payment details from this invoice.

Return JSON with exactly these fields:
{
  "beneficiary_name": "name of the party to be paid",
  "amount": "total amount due as a decimal string, e.g. \"1250.00\"",
  "currency": "ISO 4217 code, e.g. \"EUR\"",
  "iban": "beneficiary IBAN without spaces, or empty",
  "bank_name": "beneficiary bank, or empty",
  "confidence": 0.0
}

confidence is your certainty between 0 and 1 that every field was read correctly.
Leave a field empty rather than guessing.`

// ChatClient is the part of the OpenAI client the extractor uses
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Extractor implements port.FieldExtractor with a vision model
type Extractor struct {
	client ChatClient
	pages  PageRenderer
	model  string
	logger *zap.Logger
}

// NewExtractor creates an extractor backed by the OpenAI API
func NewExtractor(apiKey, model string, logger *zap.Logger) *Extractor {
	return NewExtractorWithClient(openai.NewClient(apiKey), NewFitzRenderer(logger), model, logger)
}

// NewExtractorWithClient creates an extractor with explicit collaborators
func NewExtractorWithClient(client ChatClient, pages PageRenderer, model string, logger *zap.Logger) *Extractor {
	return &Extractor{
		client: client,
		pages:  pages,
		model:  model,
		logger: logger,
	}
}

type extractionResult struct {
	BeneficiaryName string          `json:"beneficiary_name"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	IBAN            string          `json:"iban"`
	BankName        string          `json:"bank_name"`
	Confidence      float64         `json:"confidence"`
}

// Extract implements port.FieldExtractor
func (e *Extractor) Extract(ctx context.Context, invoiceID, filePath string) (*entity.ExtractedFields, error) {
	e.logger.Info("Extracting invoice fields", zap.String("invoice_id", invoiceID), zap.String("path", filePath))

	pages, err := e.pages.Render(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: extractionPrompt}}
	for _, p := range pages {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", p.MimeType, base64.StdEncoding.EncodeToString(p.Data)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   1024,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	result, err := parseResult(resp.Choices[0].Message.Content)
	if err != nil {
		e.logger.Error("Failed to parse OpenAI response",
			zap.Error(err),
			zap.String("content", resp.Choices[0].Message.Content))
		return nil, err
	}

	e.logger.Info("Invoice fields extracted",
		zap.String("invoice_id", invoiceID),
		zap.Float64("confidence", result.Confidence))

	return &entity.ExtractedFields{
		InvoiceID:       invoiceID,
		BeneficiaryName: strings.TrimSpace(result.BeneficiaryName),
		Amount:          result.Amount,
		Currency:        strings.ToUpper(strings.TrimSpace(result.Currency)),
		IBAN:            strings.ToUpper(strings.ReplaceAll(result.IBAN, " ", "")),
		BankName:        strings.TrimSpace(result.BankName),
		Confidence:      result.Confidence,
	}, nil
}

// parseResult decodes the model output, accepting JSON wrapped in a markdown fence
func parseResult(content string) (*extractionResult, error) {
	var result extractionResult
	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return &result, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("response contains no JSON object")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

var _ port.FieldExtractor = (*Extractor)(nil)
