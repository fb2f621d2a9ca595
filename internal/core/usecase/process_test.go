package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
)

func TestProcessUploadsAndRegistersHash(t *testing.T) {
	content := newContentStoreFake()
	content.uploadRef = "swarm-hash-1"
	store := newMetadataStoreFake()
	uc := NewProcessTraceUseCase(content, store)

	record := domain.TraceRecord{
		ID:       "id-1",
		Tickbar:  "8412345678901",
		Document: json.RawMessage(`{"tztotrazwebinfo":{}}`),
	}
	if err := uc.Process(context.Background(), record); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(content.uploaded) != 1 {
		t.Fatalf("expected one upload, got %d", len(content.uploaded))
	}
	if store.inserted["8412345678901"] != "swarm-hash-1" {
		t.Fatalf("expected hash registered, got %v", store.inserted)
	}
}

func TestProcessRejectsIncompleteRecord(t *testing.T) {
	uc := NewProcessTraceUseCase(newContentStoreFake(), newMetadataStoreFake())
	err := uc.Process(context.Background(), domain.TraceRecord{Tickbar: "x"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProcessSurfacesUploadFailure(t *testing.T) {
	content := newContentStoreFake()
	content.uploadErr = errors.New("bee unavailable")
	store := newMetadataStoreFake()
	uc := NewProcessTraceUseCase(content, store)

	record := domain.TraceRecord{Tickbar: "8412345678901", Document: json.RawMessage(`{}`)}
	if err := uc.Process(context.Background(), record); err == nil {
		t.Fatalf("expected upload error")
	}
	if len(store.inserted) != 0 {
		t.Fatalf("hash must not be registered when upload fails")
	}
}
