package usecase

import (
	"context"
	"testing"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
)

func TestTraceResolvesHashAndFetchesDocument(t *testing.T) {
	store := newMetadataStoreFake()
	store.inserted["8412345678901"] = "hash-1"
	content := newContentStoreFake()
	content.documents["hash-1"] = domain.TraceDocument{
		"tztotrazwebinfo": map[string]any{"TNOMBCLIE": "LACOSTE"},
	}
	uc := NewGetTraceUseCase(store, content)

	doc, err := uc.Trace(context.Background(), "8412345678901")
	if err != nil {
		t.Fatalf("Trace() error = %v", err)
	}
	if _, ok := doc["tztotrazwebinfo"]; !ok {
		t.Fatalf("unexpected document %v", doc)
	}
}

func TestTraceUnknownTickbar(t *testing.T) {
	uc := NewGetTraceUseCase(newMetadataStoreFake(), newContentStoreFake())
	if _, err := uc.Trace(context.Background(), "0000000000000"); !domain.IsKind(err, domain.ErrTraceNotFound) {
		t.Fatalf("expected ErrTraceNotFound, got %v", err)
	}
}

func TestTraceEmptyTickbar(t *testing.T) {
	uc := NewGetTraceUseCase(newMetadataStoreFake(), newContentStoreFake())
	if _, err := uc.Trace(context.Background(), " "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
