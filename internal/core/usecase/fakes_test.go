package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// oracleFake answers Complete calls from a scripted queue of responses keyed
// by a substring of the system instruction. Unmatched calls fall through to
// Default or error.
type oracleFake struct {
	mu        sync.Mutex
	responses map[string][]string
	calls     map[string]int
	failWith  error
	onCall    func(systemInstruction string)
}

func newOracleFake() *oracleFake {
	return &oracleFake{
		responses: make(map[string][]string),
		calls:     make(map[string]int),
	}
}

func (f *oracleFake) respond(key string, outputs ...string) {
	f.responses[key] = append(f.responses[key], outputs...)
}

func (f *oracleFake) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *oracleFake) Complete(_ context.Context, systemInstruction, _ string, _ float32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(systemInstruction)
	}
	if f.failWith != nil {
		return "", f.failWith
	}
	for key, queue := range f.responses {
		if len(queue) == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(systemInstruction), strings.ToLower(key)) {
			f.calls[key]++
			out := queue[0]
			if len(queue) > 1 {
				f.responses[key] = queue[1:]
			}
			return out, nil
		}
	}
	return "", fmt.Errorf("oracle fake: no scripted response for %q", systemInstruction)
}

type metadataStoreFake struct {
	mu           sync.Mutex
	results      []domain.StoreResult
	executed     []string
	distinct     map[domain.VocabularyField][]string
	distinctHits map[domain.VocabularyField]int
	inserted     map[string]string
	execErr      error
}

func newMetadataStoreFake() *metadataStoreFake {
	return &metadataStoreFake{
		distinct:     make(map[domain.VocabularyField][]string),
		distinctHits: make(map[domain.VocabularyField]int),
		inserted:     make(map[string]string),
	}
}

func (f *metadataStoreFake) ExecuteInstruction(_ context.Context, instruction string) (domain.StoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, instruction)
	if f.execErr != nil {
		return domain.StoreResult{}, f.execErr
	}
	if len(f.results) == 0 {
		return domain.StoreResult{}, nil
	}
	result := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return result, nil
}

func (f *metadataStoreFake) DistinctValues(_ context.Context, field domain.VocabularyField, _ int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.distinctHits[field]++
	return f.distinct[field], nil
}

func (f *metadataStoreFake) InsertTraceHash(_ context.Context, tickbar, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted[tickbar] = hash
	return nil
}

func (f *metadataStoreFake) TraceHash(_ context.Context, tickbar string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, ok := f.inserted[tickbar]
	if !ok {
		return "", fmt.Errorf("trace hash: %w: tickbar %s", domain.ErrTraceNotFound, tickbar)
	}
	return hash, nil
}

type contentStoreFake struct {
	mu        sync.Mutex
	documents map[string]domain.TraceDocument
	fetched   []string
	fetchErr  map[string]error
	holdOpen  map[string]bool
	uploadRef string
	uploadErr error
	uploaded  [][]byte
}

func newContentStoreFake() *contentStoreFake {
	return &contentStoreFake{
		documents: make(map[string]domain.TraceDocument),
		fetchErr:  make(map[string]error),
		holdOpen:  make(map[string]bool),
	}
}

func (f *contentStoreFake) Fetch(ctx context.Context, hash string) (domain.TraceDocument, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, hash)
	hold := f.holdOpen[hash]
	err := f.fetchErr[hash]
	doc, ok := f.documents[hash]
	f.mu.Unlock()
	if hold {
		// Simulates a download that completes just as the caller
		// cancels the run.
		<-ctx.Done()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", hash, domain.ErrTraceNotFound)
	}
	return doc, nil
}

func (f *contentStoreFake) Upload(_ context.Context, payload []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploaded = append(f.uploaded, payload)
	if f.uploadRef == "" {
		return "ref-1", nil
	}
	return f.uploadRef, nil
}

func (f *contentStoreFake) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

type queueFake struct {
	published []domain.TraceRecord
	err       error
}

func (f *queueFake) PublishTraceRecorded(_ context.Context, record domain.TraceRecord) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, record)
	return nil
}

func (f *queueFake) SubscribeTraceRecorded(context.Context, func(context.Context, domain.TraceRecord) error) error {
	return nil
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(raw)
}
