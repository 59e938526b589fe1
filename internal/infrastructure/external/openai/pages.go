package openai

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// maxPages bounds the pages sent to the vision model
const maxPages = 2

// Page is one rendered document page
type Page struct {
	MimeType string
	Data     []byte
}

// PageRenderer turns an invoice document into images
type PageRenderer interface {
	Render(path string) ([]Page, error)
}

// FitzRenderer renders PDF pages with MuPDF. Image files are passed through.
type FitzRenderer struct {
	logger *zap.Logger
}

// NewFitzRenderer creates a new FitzRenderer
func NewFitzRenderer(logger *zap.Logger) *FitzRenderer {
	return &FitzRenderer{logger: logger}
}

// Render returns at most maxPages pages of the document
func (r *FitzRenderer) Render(path string) ([]Page, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("document not found: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jpg", ".jpeg":
		return readImage(path, "image/jpeg")
	case ".png":
		return readImage(path, "image/png")
	case ".pdf":
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	count := min(doc.NumPage(), maxPages)
	pages := make([]Page, 0, count)
	for n := 0; n < count; n++ {
		img, err := doc.Image(n)
		if err != nil {
			r.logger.Warn("Failed to render page", zap.Int("page", n), zap.Error(err))
			continue
		}
		data, err := encodeJPEG(img)
		if err != nil {
			r.logger.Warn("Failed to encode page", zap.Int("page", n), zap.Error(err))
			continue
		}
		pages = append(pages, Page{MimeType: "image/jpeg", Data: data})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages rendered from %s", filepath.Base(path))
	}
	return pages, nil
}

func readImage(path, mimeType string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return []Page{{MimeType: mimeType, Data: data}}, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
