package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/core/ports"
)

// GetTraceUseCase resolves a tickbar to its content address and retrieves
// the stored trace document.
type GetTraceUseCase struct {
	store   ports.MetadataStore
	content ports.ContentStore
}

func NewGetTraceUseCase(store ports.MetadataStore, content ports.ContentStore) *GetTraceUseCase {
	return &GetTraceUseCase{
		store:   store,
		content: content,
	}
}

func (uc *GetTraceUseCase) Trace(ctx context.Context, tickbar string) (domain.TraceDocument, error) {
	tickbar = strings.TrimSpace(tickbar)
	if tickbar == "" {
		return nil, fmt.Errorf("get trace: %w: empty tickbar", domain.ErrInvalidInput)
	}

	hash, err := uc.store.TraceHash(ctx, tickbar)
	if err != nil {
		return nil, err
	}
	doc, err := uc.content.Fetch(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("fetch trace document: %w", err)
	}
	return doc, nil
}
