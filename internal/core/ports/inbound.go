package ports

import (
	"context"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
)

// TraceAnswerer is the inbound contract for answering questions about
// garment traceability. The implementation is stateless across calls;
// a confirmation-required answer must be retried by the caller with
// autoConfirm set.
type TraceAnswerer interface {
	Answer(ctx context.Context, question string, autoConfirm bool) (*domain.Answer, error)
}

// TraceRecorder is the inbound contract for accepting a new trace record.
type TraceRecorder interface {
	Record(ctx context.Context, tickbar string, document []byte) (*domain.TraceRecord, error)
}

// TraceFetcher is the inbound contract for retrieving the stored trace
// document of a single tickbar.
type TraceFetcher interface {
	Trace(ctx context.Context, tickbar string) (domain.TraceDocument, error)
}

// TraceProcessor is the inbound contract for the asynchronous ingestion
// worker: upload the document and register its content address.
type TraceProcessor interface {
	Process(ctx context.Context, record domain.TraceRecord) error
}
