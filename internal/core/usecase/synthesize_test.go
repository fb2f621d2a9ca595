package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
)

func TestSummarizeStoreResultPassesAggregatesThrough(t *testing.T) {
	result := domain.StoreResult{
		Columns: []string{"tdescclie", "total"},
		Rows: []map[string]string{
			{"tdescclie": "LACOSTE", "total": "1523"},
			{"tdescclie": "ZARA", "total": "87"},
		},
	}
	summary := SummarizeStoreResult(result)
	if !strings.Contains(summary, "1523") || !strings.Contains(summary, "ZARA") {
		t.Fatalf("aggregate rows must pass through, got %q", summary)
	}
	if strings.Contains(summary, "Total de registros") {
		t.Fatalf("aggregate results must not be collapsed, got %q", summary)
	}
}

func TestSummarizeStoreResultCollapsesLargeResults(t *testing.T) {
	result := domain.StoreResult{Columns: []string{"tdescclie", "ttickhash"}}
	for i := 0; i < 35; i++ {
		result.Rows = append(result.Rows, map[string]string{
			"tdescclie": fmt.Sprintf("CLIENTE-%d", i),
			"ttickhash": fmt.Sprintf("hash-%d", i),
		})
	}
	summary := SummarizeStoreResult(result)
	if !strings.Contains(summary, "Total de registros: 35") {
		t.Fatalf("expected total count, got %q", summary)
	}
	if strings.Count(summary, "CLIENTE-") != summaryRowCap {
		t.Fatalf("expected %d sample rows, got %d", summaryRowCap, strings.Count(summary, "CLIENTE-"))
	}
	if strings.Contains(summary, "hash-") {
		t.Fatalf("internal columns must never reach the summary, got %q", summary)
	}
}

func TestSynthesizeAppendsAnalysisFooter(t *testing.T) {
	oracle := newOracleFake()
	oracle.respond("asistente de trazabilidad", "Las prendas fueron cosidas en la maquina COSTURA-07.")

	repairer := NewRepairController(oracle, 3, testLogger(), nil)
	synth := NewSynthesizer(oracle, repairer, 0, 80_000, 30, nil)

	report := domain.FetchReport{Requested: 100, Succeeded: 97}
	text, err := synth.Synthesize(context.Background(), SynthesisInput{
		Question: "¿Dónde se cosieron?",
		Evidence: domain.EvidenceBundle{"h1": json.RawMessage(`{"a":1}`)},
		Report:   &report,
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !strings.Contains(text, "Se analizaron 97 registros de 100") {
		t.Fatalf("expected analysis footer, got %q", text)
	}
}

func TestSynthesizeTruncatesOversizedEvidence(t *testing.T) {
	oracle := newOracleFake()
	repairer := NewRepairController(oracle, 3, testLogger(), nil)
	synth := NewSynthesizer(oracle, repairer, 0, 2_000, 5, nil)

	evidence := domain.EvidenceBundle{}
	for i := 0; i < 40; i++ {
		evidence[fmt.Sprintf("h%02d", i)] = json.RawMessage(`{"campo":"` + strings.Repeat("v", 100) + `"}`)
	}
	captured := synth.buildPrompt(SynthesisInput{Question: "pregunta", Evidence: evidence})

	if len(captured) > 2_000+200 {
		t.Fatalf("prompt should honor the ceiling, got %d bytes", len(captured))
	}
	if !strings.Contains(captured, "Evidencia truncada") {
		t.Fatalf("expected truncation note, got %q", captured)
	}
	if strings.Count(captured, "Documento ") > 5 {
		t.Fatalf("expected at most 5 evidence entries, got %d", strings.Count(captured, "Documento "))
	}
}
