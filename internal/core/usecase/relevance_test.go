package usecase

import (
	"context"
	"testing"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
)

func sampleDoc(machine string) domain.TraceDocument {
	return domain.TraceDocument{
		"tztotrazwebinfo": map[string]any{"TNOMBCLIE": "LACOSTE"},
		"tztotrazwebcost": []any{
			map[string]any{"TNOMBMAQU": machine, "TNOMBPERS": "OP-1"},
		},
	}
}

func newTestClassifier(oracle *oracleFake) *RelevanceClassifier {
	repairer := NewRepairController(oracle, 3, testLogger(), nil)
	return NewRelevanceClassifier(oracle, repairer, 0, testLogger(), nil)
}

func TestClassifyReturnsRequestedKeys(t *testing.T) {
	oracle := newOracleFake()
	oracle.respond("clasificador de relevancia", `{"has_relevant_data":true,"keys":["COSTURA.MAQUINA"],"explanation":"la pregunta trata de maquinas"}`)

	result, err := newTestClassifier(oracle).Classify(context.Background(), "¿Qué máquina cosió la prenda?", []domain.TraceDocument{
		sampleDoc("COSTURA-01"), sampleDoc("COSTURA-02"), sampleDoc("COSTURA-03"),
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !result.HasRelevantData || len(result.Keys) != 1 || result.Keys[0] != "COSTURA.MAQUINA" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClassifyRepairsMalformedVerdict(t *testing.T) {
	oracle := newOracleFake()
	oracle.respond("clasificador de relevancia",
		"esto no es JSON",
		`{"has_relevant_data":true,"keys":["COSTURA.operario"]}`,
	)
	oracle.respond("corrige entradas", "entrada corregida")

	result, err := newTestClassifier(oracle).Classify(context.Background(), "¿Quién cosió la prenda?", []domain.TraceDocument{sampleDoc("M1")})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !result.HasRelevantData || len(result.Keys) != 1 {
		t.Fatalf("unexpected result after repair: %+v", result)
	}
	if got := oracle.callCount("clasificador de relevancia"); got != 2 {
		t.Fatalf("classifier calls = %d, want 2", got)
	}
	if got := oracle.callCount("corrige entradas"); got != 1 {
		t.Fatalf("repair calls = %d, want 1", got)
	}
}

func TestClassifyExhaustsOnRelevantWithoutKeys(t *testing.T) {
	oracle := newOracleFake()
	oracle.respond("clasificador de relevancia", `{"has_relevant_data":true,"keys":[]}`)
	oracle.respond("corrige entradas", "entrada corregida")

	_, err := newTestClassifier(oracle).Classify(context.Background(), "pregunta", []domain.TraceDocument{sampleDoc("M1")})
	if err == nil {
		t.Fatalf("expected error for persistent relevant-without-keys output")
	}
	if !domain.IsKind(err, domain.ErrMalformedOracleOutput) {
		t.Fatalf("expected ErrMalformedOracleOutput, got %v", err)
	}
	if got := oracle.callCount("clasificador de relevancia"); got != 3 {
		t.Fatalf("classifier calls = %d, want 3", got)
	}
}

func TestClassifyDeclaresIrrelevantData(t *testing.T) {
	oracle := newOracleFake()
	oracle.respond("clasificador de relevancia", `{"has_relevant_data":false,"keys":[],"explanation":"los documentos no registran colores"}`)

	result, err := newTestClassifier(oracle).Classify(context.Background(), "¿De qué color es la prenda?", []domain.TraceDocument{sampleDoc("M1")})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.HasRelevantData {
		t.Fatalf("expected irrelevant verdict, got %+v", result)
	}
}
