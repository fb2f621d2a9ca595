package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/core/ports"
)

// Planner asks the oracle for a machine-readable execution plan. The call
// runs under the repair controller with the plan validator, so malformed
// plans and unsafe query instructions are repaired before they surface.
type Planner struct {
	oracle      ports.Oracle
	repair      *RepairController
	temperature float32
	observer    PipelineObserver
}

func NewPlanner(oracle ports.Oracle, repair *RepairController, temperature float32, observer PipelineObserver) *Planner {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Planner{
		oracle:      oracle,
		repair:      repair,
		temperature: temperature,
		observer:    observer,
	}
}

func (p *Planner) Plan(ctx context.Context, question string, filters domain.FilterSet) (domain.Plan, error) {
	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("marshal filters: %w", err)
	}

	system := plannerSystemPrompt()
	task := RepairTask{
		Stage:       "planner",
		Input:       fmt.Sprintf("Pregunta:\n%s\n\nFiltros extraidos:\n%s", question, filtersJSON),
		TaskContext: system,
		Operation: func(ctx context.Context, input string) (string, error) {
			out, err := p.oracle.Complete(ctx, system, input, p.temperature)
			p.observer.OracleCall("planner", err)
			return out, err
		},
		Validate: ValidatePlanPayload,
	}

	raw, err := p.repair.Execute(ctx, task)
	if err != nil {
		return domain.Plan{}, err
	}

	var plan domain.Plan
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &plan); err != nil {
		return domain.Plan{}, fmt.Errorf("parse plan: %w: %w", domain.ErrMalformedOracleOutput, err)
	}
	if !plan.NeedsDocumentFetch {
		plan.DocumentLimit = 0
	}
	return plan, nil
}

func plannerSystemPrompt() string {
	return "Eres un planificador de consultas sobre la tabla apdobloctrazhash " +
		"(columnas: ttickbarr, tnumevers, tnumecaja, testiclie, tetiqclie, tcoditall, ttickhash, " +
		"tcodiclie, tdescclie, ttipopren, ttipoedad, ttipogene, tlugadest, ttipoteji). " +
		"Decide si la pregunta necesita consultar documentos de trazabilidad completos o solo campos agregados. " +
		"Preguntas sobre conteos o agrupaciones de columnas: sin descarga de documentos. " +
		"Preguntas sobre maquinas, operarios, fechas de proceso o detalle de produccion: requieren documentos. " +
		"document_limit: 0 para agregaciones puras, 50-100 para analisis moderado, 0 con needs_document_fetch=true para busquedas de una sola prenda (todas las coincidencias). " +
		"Si hace falta consultar la tabla, genera una consulta SELECT de solo lectura en query_instruction; " +
		"incluye siempre la columna ttickhash cuando se necesiten documentos. " +
		"Responde solo con un objeto JSON: {\"reasoning\": string, \"query_instruction\": string, " +
		"\"needs_document_fetch\": bool, \"document_limit\": int}."
}
