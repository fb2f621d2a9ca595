package ports

import (
	"context"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
)

// Oracle is the external text-completion capability. Its output is never
// trusted: it may be empty, malformed, or non-deterministic, and every call
// may fail with a transport error.
type Oracle interface {
	Complete(ctx context.Context, systemInstruction, userMessage string, temperature float32) (string, error)
}

// MetadataStore reads and writes the relational garment-metadata table.
type MetadataStore interface {
	// ExecuteInstruction runs a read-only SQL instruction and returns the
	// tabular result with lowercased column names. An empty result is a
	// valid outcome, not an error.
	ExecuteInstruction(ctx context.Context, instruction string) (domain.StoreResult, error)
	// DistinctValues returns the distinct non-null values of a vocabulary
	// column, capped at limit.
	DistinctValues(ctx context.Context, field domain.VocabularyField, limit int) ([]string, error)
	// InsertTraceHash registers a tickbar's content address.
	InsertTraceHash(ctx context.Context, tickbar, hash string) error
	// TraceHash returns the content address registered for a tickbar, or
	// domain.ErrTraceNotFound when none exists.
	TraceHash(ctx context.Context, tickbar string) (string, error)
}

// ContentStore fetches and uploads content-addressed trace documents.
type ContentStore interface {
	Fetch(ctx context.Context, hash string) (domain.TraceDocument, error)
	Upload(ctx context.Context, payload []byte) (string, error)
}

// TraceQueue carries trace-ingestion events between the API and the worker.
type TraceQueue interface {
	PublishTraceRecorded(ctx context.Context, record domain.TraceRecord) error
	SubscribeTraceRecorded(ctx context.Context, handler func(context.Context, domain.TraceRecord) error) error
}
