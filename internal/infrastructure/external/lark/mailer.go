package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/application/port"
)

// Transport is the subset of the Lark client the mailer needs
type Transport interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
	UploadFile(ctx context.Context, fileName string, content []byte) (string, error)
}

// Mailer delivers notification emails as Lark messages addressed by email.
// Attachments are uploaded once per message and sent as file messages.
type Mailer struct {
	transport Transport
	logger    *zap.Logger
}

// NewMailer creates a new Lark mailer
func NewMailer(transport Transport, logger *zap.Logger) *Mailer {
	return &Mailer{
		transport: transport,
		logger:    logger,
	}
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// postContent builds the JSON content of a "post" message, one paragraph per line
func postContent(subject, body string) (string, error) {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	paragraphs := make([][]postElement, 0, len(lines))
	for _, line := range lines {
		paragraphs = append(paragraphs, []postElement{{Tag: "text", Text: line}})
	}

	raw, err := json.Marshal(map[string]postBody{
		"en_us": {Title: subject, Content: paragraphs},
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Send implements port.Mailer
func (m *Mailer) Send(ctx context.Context, msg port.Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	content, err := postContent(msg.Subject, msg.Body)
	if err != nil {
		return fmt.Errorf("failed to build message content: %w", err)
	}

	fileKeys := make([]string, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		data := att.Content
		if len(data) == 0 && att.Path != "" {
			if data, err = os.ReadFile(att.Path); err != nil {
				return fmt.Errorf("failed to read attachment %s: %w", att.Name, err)
			}
		}
		key, err := m.transport.UploadFile(ctx, att.Name, data)
		if err != nil {
			return fmt.Errorf("failed to upload attachment %s: %w", att.Name, err)
		}
		raw, _ := json.Marshal(map[string]string{"file_key": key})
		fileKeys = append(fileKeys, string(raw))
	}

	var errs []error
	for _, to := range msg.To {
		if _, err := m.transport.SendMessage(ctx, "email", to, "post", content); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
			continue
		}
		for _, fileContent := range fileKeys {
			if _, err := m.transport.SendMessage(ctx, "email", to, "file", fileContent); err != nil {
				errs = append(errs, fmt.Errorf("%s attachment: %w", to, err))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	m.logger.Info("Email sent via Lark",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))
	return nil
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no Lark app is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send implements port.Mailer
func (m *LogMailer) Send(ctx context.Context, msg port.Message) error {
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Name)
	}
	m.logger.Info("Email (not delivered, Lark disabled)",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Strings("attachments", names))
	return nil
}

// Verify interface compliance
var (
	_ port.Mailer = (*Mailer)(nil)
	_ port.Mailer = (*LogMailer)(nil)
	_ Transport   = (*Client)(nil)
)
