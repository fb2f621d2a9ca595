package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/core/ports"
)

// summaryRowCap bounds how many raw rows a store-result summary carries.
const summaryRowCap = 20

// internalColumns never reach the synthesizer: content addresses and join
// fields are meaningless to the user.
var internalColumns = map[string]struct{}{
	"ttickhash": {},
	"ttickbarr": {},
	"tnumevers": {},
}

// Synthesizer produces the final natural-language answer from the question,
// the plan reasoning, a compact store summary and the evidence bundle. It
// runs under the repair controller with the free-text validator.
type Synthesizer struct {
	oracle      ports.Oracle
	repair      *RepairController
	temperature float32
	maxBytes    int
	keepFirst   int
	observer    PipelineObserver
}

func NewSynthesizer(oracle ports.Oracle, repair *RepairController, temperature float32, maxBytes, keepFirst int, observer PipelineObserver) *Synthesizer {
	if maxBytes <= 0 {
		maxBytes = 80_000
	}
	if keepFirst <= 0 {
		keepFirst = 30
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Synthesizer{
		oracle:      oracle,
		repair:      repair,
		temperature: temperature,
		maxBytes:    maxBytes,
		keepFirst:   keepFirst,
		observer:    observer,
	}
}

type SynthesisInput struct {
	Question    string
	Reasoning   string
	StoreResult domain.StoreResult
	Evidence    domain.EvidenceBundle
	Report      *domain.FetchReport
}

func (s *Synthesizer) Synthesize(ctx context.Context, input SynthesisInput) (string, error) {
	prompt := s.buildPrompt(input)

	system := "Eres un asistente de trazabilidad textil. " +
		"Responde la pregunta del usuario en espanol usando unicamente la evidencia proporcionada. " +
		"Formatea los numeros grandes con separador de miles. " +
		"No menciones identificadores internos, hashes ni nombres de columnas."

	task := RepairTask{
		Stage:       "synthesizer",
		Input:       prompt,
		TaskContext: system,
		Operation: func(ctx context.Context, in string) (string, error) {
			out, err := s.oracle.Complete(ctx, system, in, s.temperature)
			s.observer.OracleCall("synthesizer", err)
			return out, err
		},
		Validate: ValidateAnswerText,
	}

	answer, err := s.repair.Execute(ctx, task)
	if err != nil {
		return "", err
	}

	if input.Report != nil && input.Report.Requested > 0 {
		answer = fmt.Sprintf("%s\n\nSe analizaron %d registros de %d encontrados.",
			answer, input.Report.Succeeded, input.Report.Requested)
	}
	return answer, nil
}

func (s *Synthesizer) buildPrompt(input SynthesisInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pregunta:\n%s\n", input.Question)
	if input.Reasoning != "" {
		fmt.Fprintf(&b, "\nAnalisis previo:\n%s\n", input.Reasoning)
	}
	if summary := SummarizeStoreResult(input.StoreResult); summary != "" {
		fmt.Fprintf(&b, "\nResumen de la base de datos:\n%s\n", summary)
	}

	if len(input.Evidence) == 0 {
		return b.String()
	}

	hashes := make([]string, 0, len(input.Evidence))
	for hash := range input.Evidence {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)

	head := b.String()
	var evidence strings.Builder
	kept := 0
	truncated := false
	for _, hash := range hashes {
		entry := fmt.Sprintf("\nDocumento %d:\n%s\n", kept+1, input.Evidence[hash])
		if len(head)+evidence.Len()+len(entry) > s.maxBytes || kept >= s.keepFirst {
			truncated = true
			break
		}
		evidence.WriteString(entry)
		kept++
	}

	b.WriteString("\nEvidencia de documentos:\n")
	b.WriteString(evidence.String())
	if truncated {
		fmt.Fprintf(&b, "\n(Evidencia truncada: se incluyen %d de %d documentos.)\n", kept, len(hashes))
	}
	return b.String()
}

// SummarizeStoreResult reduces a tabular result to what the synthesizer may
// see: aggregate rows pass through, anything larger collapses to a row count
// plus a capped sample, always excluding internal reference columns.
func SummarizeStoreResult(result domain.StoreResult) string {
	if result.Empty() {
		return ""
	}

	columns := make([]string, 0, len(result.Columns))
	for _, col := range result.Columns {
		if _, internal := internalColumns[col]; internal {
			continue
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return fmt.Sprintf("Total de registros: %d", len(result.Rows))
	}

	rows := result.Rows
	var b strings.Builder
	if isAggregate(result) {
		for _, row := range rows {
			b.WriteString(renderRow(columns, row))
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Total de registros: %d\n", len(rows))
	if len(rows) > summaryRowCap {
		rows = rows[:summaryRowCap]
		fmt.Fprintf(&b, "Muestra de los primeros %d:\n", summaryRowCap)
	}
	for _, row := range rows {
		b.WriteString(renderRow(columns, row))
	}
	return b.String()
}

// isAggregate recognizes COUNT/GROUP BY shaped results by their columns.
func isAggregate(result domain.StoreResult) bool {
	for _, col := range result.Columns {
		if col == "count" || col == "total" || strings.HasPrefix(col, "count(") {
			return true
		}
	}
	return false
}

func renderRow(columns []string, row map[string]string) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, fmt.Sprintf("%s=%s", col, row[col]))
	}
	return "- " + strings.Join(parts, ", ") + "\n"
}
