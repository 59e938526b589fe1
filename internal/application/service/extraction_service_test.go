package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

func TestExtractionService_Save(t *testing.T) {
	tests := []struct {
		name       string
		fields     entity.ExtractedFields
		wantReview bool
		wantErr    error
	}{
		{
			name:   "confident and valid",
			fields: entity.ExtractedFields{InvoiceID: "inv-1", IBAN: "DE89370400440532013000", Confidence: 0.97},
		},
		{
			name:       "low confidence",
			fields:     entity.ExtractedFields{InvoiceID: "inv-1", IBAN: "DE89370400440532013000", Confidence: 0.6},
			wantReview: true,
		},
		{
			name:       "bad checksum",
			fields:     entity.ExtractedFields{InvoiceID: "inv-1", IBAN: "DE89370400440532013001", Confidence: 0.99},
			wantReview: true,
		},
		{
			name:    "confidence out of range",
			fields:  entity.ExtractedFields{InvoiceID: "inv-1", Confidence: 1.2},
			wantErr: domainwf.ErrMissingRequiredField,
		},
		{
			name:    "unknown invoice",
			fields:  entity.ExtractedFields{InvoiceID: "missing", Confidence: 0.9},
			wantErr: domainwf.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockExtractedRepo{saved: map[string]*entity.ExtractedFields{}}
			svc := NewExtractionService(testInvoices(), repo, testUsers(), nil, 0.95, &mockLogger{})

			fields := tt.fields
			got, err := svc.Save(context.Background(), domainwf.SystemActorID, &fields)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Save() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Save() unexpected error = %v", err)
			}
			if got.NeedsReview != tt.wantReview {
				t.Errorf("NeedsReview = %v, want %v", got.NeedsReview, tt.wantReview)
			}
			if got.ExtractedAt.IsZero() {
				t.Error("ExtractedAt not set")
			}
			if repo.saved["inv-1"] == nil {
				t.Error("fields not stored")
			}
		})
	}
}

func TestExtractionService_ExtractFromFile(t *testing.T) {
	repo := &mockExtractedRepo{saved: map[string]*entity.ExtractedFields{}}
	extractor := &mockExtractor{result: &entity.ExtractedFields{
		BeneficiaryName: "Jane Doe",
		Amount:          decimal.RequireFromString("250"),
		IBAN:            "GB82WEST12345698765432",
		Confidence:      0.98,
	}}
	svc := NewExtractionService(testInvoices(), repo, testUsers(), extractor, 0.95, &mockLogger{})

	got, err := svc.ExtractFromFile(context.Background(), "inv-1", "/data/inv-1.pdf")
	if err != nil {
		t.Fatalf("ExtractFromFile() error = %v", err)
	}
	if got.InvoiceID != "inv-1" || got.NeedsReview {
		t.Errorf("fields = %+v", got)
	}

	stored, err := svc.Get(context.Background(), "inv-1")
	if err != nil || stored.BeneficiaryName != "Jane Doe" {
		t.Errorf("Get() = %+v, %v", stored, err)
	}

	extractor.err = errors.New("model unavailable")
	if _, err := svc.ExtractFromFile(context.Background(), "inv-1", "/data/inv-1.pdf"); err == nil {
		t.Error("expected extractor error")
	}

	noExtractor := NewExtractionService(testInvoices(), repo, testUsers(), nil, 0.95, &mockLogger{})
	if _, err := noExtractor.ExtractFromFile(context.Background(), "inv-1", "x.pdf"); err == nil {
		t.Error("expected error without extractor")
	}
	if _, err := noExtractor.Get(context.Background(), "other"); !errors.Is(err, domainwf.ErrNotFound) {
		t.Errorf("Get(other) error = %v", err)
	}
}

func TestExtractionService_SaveAuthorization(t *testing.T) {
	repo := &mockExtractedRepo{saved: map[string]*entity.ExtractedFields{}}
	svc := NewExtractionService(testInvoices(), repo, testUsers(), nil, 0.95, &mockLogger{})

	for _, actor := range []string{"M", "S", "Z", "unknown"} {
		_, err := svc.Save(context.Background(), actor, &entity.ExtractedFields{InvoiceID: "inv-1", Confidence: 1})
		if !errors.Is(err, domainwf.ErrForbidden) {
			t.Errorf("Save() by %s error = %v, want ErrForbidden", actor, err)
		}
		if reason, _ := domainwf.ReasonOf(err); reason != domainwf.ReasonForbiddenRole {
			t.Errorf("Save() by %s reason = %s", actor, reason)
		}
	}
	if len(repo.saved) != 0 {
		t.Errorf("stored %d records, want none", len(repo.saved))
	}
}

func TestExtractionService_ReviewFlagIsSticky(t *testing.T) {
	repo := &mockExtractedRepo{saved: map[string]*entity.ExtractedFields{}}
	svc := NewExtractionService(testInvoices(), repo, testUsers(), nil, 0.95, &mockLogger{})
	ctx := context.Background()

	flagged, err := svc.Save(ctx, domainwf.SystemActorID, &entity.ExtractedFields{InvoiceID: "inv-1", Confidence: 0.5})
	if err != nil || !flagged.NeedsReview {
		t.Fatalf("Save() = %+v, %v; want flagged", flagged, err)
	}

	again, err := svc.Save(ctx, domainwf.SystemActorID, &entity.ExtractedFields{InvoiceID: "inv-1", Confidence: 1, NeedsReview: false})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !again.NeedsReview {
		t.Error("write-back by the extraction service cleared the review flag")
	}

	cleared, err := svc.Save(ctx, "A", &entity.ExtractedFields{InvoiceID: "inv-1", Confidence: 1, NeedsReview: false})
	if err != nil {
		t.Fatalf("Save() by admin error = %v", err)
	}
	if cleared.NeedsReview {
		t.Error("admin could not clear the review flag")
	}
	if repo.saved["inv-1"].NeedsReview {
		t.Error("stored record still flagged after admin review")
	}
}
