package usecase

import (
	"context"
	"fmt"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/core/ports"
)

// ProcessTraceUseCase is the worker side of ingestion: upload the trace
// document to the content store and register its content address.
type ProcessTraceUseCase struct {
	content ports.ContentStore
	store   ports.MetadataStore
}

func NewProcessTraceUseCase(content ports.ContentStore, store ports.MetadataStore) *ProcessTraceUseCase {
	return &ProcessTraceUseCase{
		content: content,
		store:   store,
	}
}

func (uc *ProcessTraceUseCase) Process(ctx context.Context, record domain.TraceRecord) error {
	if record.Tickbar == "" || len(record.Document) == 0 {
		return fmt.Errorf("process trace: %w: incomplete record", domain.ErrInvalidInput)
	}

	hash, err := uc.content.Upload(ctx, record.Document)
	if err != nil {
		return fmt.Errorf("upload trace document: %w", err)
	}

	if err := uc.store.InsertTraceHash(ctx, record.Tickbar, hash); err != nil {
		return fmt.Errorf("register trace hash: %w", err)
	}
	return nil
}
