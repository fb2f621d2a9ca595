package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/core/ports"
)

// RecordTraceUseCase accepts a new trace document for a garment tickbar and
// hands it to the worker through the queue. The upload itself is
// asynchronous; the caller only learns that the record was accepted.
type RecordTraceUseCase struct {
	queue ports.TraceQueue
}

func NewRecordTraceUseCase(queue ports.TraceQueue) *RecordTraceUseCase {
	return &RecordTraceUseCase{queue: queue}
}

func (uc *RecordTraceUseCase) Record(ctx context.Context, tickbar string, document []byte) (*domain.TraceRecord, error) {
	tickbar = strings.TrimSpace(tickbar)
	if tickbar == "" {
		return nil, fmt.Errorf("record trace: %w: empty tickbar", domain.ErrInvalidInput)
	}
	if !json.Valid(document) {
		return nil, fmt.Errorf("record trace: %w: document is not valid JSON", domain.ErrInvalidInput)
	}

	record := domain.TraceRecord{
		ID:        uuid.NewString(),
		Tickbar:   tickbar,
		Document:  json.RawMessage(document),
		CreatedAt: time.Now().UTC(),
	}

	if err := uc.queue.PublishTraceRecorded(ctx, record); err != nil {
		return nil, fmt.Errorf("publish trace record: %w", err)
	}
	return &record, nil
}
