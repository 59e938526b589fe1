package openai

import (
	"context"
	"errors"
	"os"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChat struct {
	content string
	err     error
	req     openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.content}}},
	}, nil
}

type fakePages struct{ err error }

func (f fakePages) Render(path string) ([]Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []Page{{MimeType: "image/png", Data: []byte{1, 2, 3}}}, nil
}

func TestExtractor_Extract(t *testing.T) {
	chat := &fakeChat{content: `{"beneficiary_name":" Acme GmbH ","amount":"1250.50","currency":"eur","iban":"de89 3704 0044 0532 0130 00","bank_name":"Commerzbank","confidence":0.91}`}
	e := NewExtractorWithClient(chat, fakePages{}, "gpt-4o", zap.NewNop())

	fields, err := e.Extract(context.Background(), "inv-1", "/tmp/inv.pdf")
	require.NoError(t, err)

	assert.Equal(t, "inv-1", fields.InvoiceID)
	assert.Equal(t, "Acme GmbH", fields.BeneficiaryName)
	assert.True(t, decimal.RequireFromString("1250.50").Equal(fields.Amount))
	assert.Equal(t, "EUR", fields.Currency)
	assert.Equal(t, "DE89370400440532013000", fields.IBAN)
	assert.InDelta(t, 0.91, fields.Confidence, 1e-9)

	require.Len(t, chat.req.Messages, 2)
	parts := chat.req.Messages[1].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, "data:image/png;base64,AQID", parts[1].ImageURL.URL)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, chat.req.ResponseFormat.Type)
}

func TestExtractor_FencedJSON(t *testing.T) {
	chat := &fakeChat{content: "```json\n{\"beneficiary_name\":\"Acme\",\"amount\":\"10\",\"confidence\":0.5}\n```"}
	e := NewExtractorWithClient(chat, fakePages{}, "gpt-4o", zap.NewNop())

	fields, err := e.Extract(context.Background(), "inv-1", "x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Acme", fields.BeneficiaryName)
}

func TestExtractor_Errors(t *testing.T) {
	tests := []struct {
		name  string
		chat  *fakeChat
		pages fakePages
	}{
		{"render failure", &fakeChat{}, fakePages{err: errors.New("broken pdf")}},
		{"api failure", &fakeChat{err: errors.New("timeout")}, fakePages{}},
		{"not json", &fakeChat{content: "I cannot read this invoice"}, fakePages{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractorWithClient(tt.chat, tt.pages, "gpt-4o", zap.NewNop())
			_, err := e.Extract(context.Background(), "inv-1", "x.pdf")
			assert.Error(t, err)
		})
	}
}

func TestFitzRenderer_UnsupportedType(t *testing.T) {
	path := t.TempDir() + "/invoice.txt"
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, err := NewFitzRenderer(zap.NewNop()).Render(path)
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestFitzRenderer_ImagePassthrough(t *testing.T) {
	path := t.TempDir() + "/invoice.png"
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	pages, err := NewFitzRenderer(zap.NewNop()).Render(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "image/png", pages[0].MimeType)
}
