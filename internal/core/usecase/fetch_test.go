package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
)

func docOfSize(n int) domain.TraceDocument {
	return domain.TraceDocument{
		"tztotrazweb1": map[string]any{"TDESCCLIE": strings.Repeat("x", n)},
	}
}

func TestFetchDownloadsEverythingUnderBudget(t *testing.T) {
	content := newContentStoreFake()
	candidates := domain.CandidateSet{"h1", "h2", "h3"}
	for _, h := range candidates {
		content.documents[h] = docOfSize(100)
	}

	engine := NewFetchEngine(content, 2, time.Second, testLogger())
	bundle, report := engine.Fetch(context.Background(), candidates, nil, FetchBudget{MaxTotalBytes: 10_000, MaxItemBytes: 1_000})

	if report.Requested != 3 || report.Succeeded != 3 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(bundle) != 3 {
		t.Fatalf("expected 3 evidence entries, got %d", len(bundle))
	}
	if bundle.Bytes() != report.BytesUsed {
		t.Fatalf("bundle bytes %d != reported %d", bundle.Bytes(), report.BytesUsed)
	}
}

func TestFetchNeverExceedsGlobalBudget(t *testing.T) {
	content := newContentStoreFake()
	var candidates domain.CandidateSet
	for _, h := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		content.documents[h] = docOfSize(400)
		candidates = append(candidates, h)
	}

	budget := FetchBudget{MaxTotalBytes: 1_000, MaxItemBytes: 10_000}
	engine := NewFetchEngine(content, 4, time.Second, testLogger())
	bundle, report := engine.Fetch(context.Background(), candidates, nil, budget)

	if bundle.Bytes() > budget.MaxTotalBytes {
		t.Fatalf("bundle %d bytes exceeds global budget %d", bundle.Bytes(), budget.MaxTotalBytes)
	}
	if report.BytesUsed > budget.MaxTotalBytes {
		t.Fatalf("reported %d bytes exceeds global budget %d", report.BytesUsed, budget.MaxTotalBytes)
	}
	if report.Succeeded == 0 {
		t.Fatalf("expected at least one admitted document, got %+v", report)
	}
	if report.Discarded+report.SkippedBudget == 0 {
		t.Fatalf("expected cutover to drop or skip work, got %+v", report)
	}
}

func TestFetchCountsLateInFlightResultsAsDiscarded(t *testing.T) {
	content := newContentStoreFake()
	content.documents["big"] = docOfSize(5_000)
	content.documents["slow"] = docOfSize(100)
	content.holdOpen["slow"] = true

	budget := FetchBudget{MaxTotalBytes: 1_000, MaxItemBytes: 100_000}
	engine := NewFetchEngine(content, 2, time.Second, testLogger())
	// "slow" is dispatched before "big" triggers the cutover, so it is
	// always in flight when the cancellation lands.
	bundle, report := engine.Fetch(context.Background(), domain.CandidateSet{"slow", "big"}, nil, budget)

	if len(bundle) != 0 || report.Succeeded != 0 {
		t.Fatalf("nothing fits the budget, got %+v", report)
	}
	if report.SkippedBudget != 0 {
		t.Fatalf("both candidates were dispatched, none skipped, got %+v", report)
	}
	if report.Discarded != 2 {
		t.Fatalf("cutover document and late in-flight result must both be discarded, got %+v", report)
	}
}

func TestFetchCapsAdversarialOversizedDocument(t *testing.T) {
	content := newContentStoreFake()
	content.documents["big"] = docOfSize(50_000)
	content.documents["small"] = docOfSize(100)

	budget := FetchBudget{MaxTotalBytes: 5_000, MaxItemBytes: 2_000}
	engine := NewFetchEngine(content, 1, time.Second, testLogger())
	bundle, report := engine.Fetch(context.Background(), domain.CandidateSet{"big", "small"}, nil, budget)

	if bundle.Bytes() > budget.MaxTotalBytes {
		t.Fatalf("bundle %d bytes exceeds budget", bundle.Bytes())
	}
	if report.Succeeded != 2 {
		t.Fatalf("per-item cap should let both documents in, got %+v", report)
	}
	if report.Truncated != 1 {
		t.Fatalf("expected exactly one truncated entry, got %+v", report)
	}
	if big := bundle["big"]; !strings.HasSuffix(string(big), truncationMarker) {
		t.Fatalf("oversized entry must end with the truncation marker")
	}
}

func TestFetchCountsPerItemFailuresWithoutRaising(t *testing.T) {
	content := newContentStoreFake()
	content.documents["ok"] = docOfSize(100)
	content.fetchErr["broken"] = context.DeadlineExceeded

	engine := NewFetchEngine(content, 2, time.Second, testLogger())
	bundle, report := engine.Fetch(context.Background(), domain.CandidateSet{"ok", "broken"}, nil, FetchBudget{MaxTotalBytes: 10_000, MaxItemBytes: 1_000})

	if report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, ok := bundle["broken"]; ok {
		t.Fatalf("failed document must not appear in the bundle")
	}
}

func TestFetchProjectsDownToRequestedKeys(t *testing.T) {
	content := newContentStoreFake()
	content.documents["h1"] = domain.TraceDocument{
		"tztotrazweb1": map[string]any{
			"TDESCCLIE": "LACOSTE",
			"TCODITALL": "M",
		},
		"tztotrazweb5": map[string]any{
			"TNOMBMAQU": "COSTURA-07",
		},
	}

	engine := NewFetchEngine(content, 1, time.Second, testLogger())
	bundle, report := engine.Fetch(context.Background(), domain.CandidateSet{"h1"}, []string{"TDESCCLIE"}, FetchBudget{MaxTotalBytes: 10_000, MaxItemBytes: 1_000})

	if report.Succeeded != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	entry := string(bundle["h1"])
	if !strings.Contains(entry, "LACOSTE") {
		t.Fatalf("projection must keep the requested field, got %s", entry)
	}
	if strings.Contains(entry, "COSTURA-07") {
		t.Fatalf("projection must drop unrequested fields, got %s", entry)
	}
}

func TestFetchEmptyCandidateSet(t *testing.T) {
	engine := NewFetchEngine(newContentStoreFake(), 2, time.Second, testLogger())
	bundle, report := engine.Fetch(context.Background(), nil, nil, FetchBudget{MaxTotalBytes: 100, MaxItemBytes: 100})
	if len(bundle) != 0 || report.Requested != 0 {
		t.Fatalf("unexpected result for empty set: %v %+v", bundle, report)
	}
}
