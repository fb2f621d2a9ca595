package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/core/ports"
)

// normalizeArrayItems and normalizeValues bound the sample normalization:
// repeated records collapse to a union of distinct values per field.
const (
	normalizeArrayItems = 5
	normalizeValues     = 5
)

// RelevanceClassifier decides which normalized (section, field) pairs of a
// sampled document set matter for a question. It is only consulted on the
// sampled strategy; small candidate sets skip classification entirely. The
// oracle call runs under the repair controller with the relevance
// validator, so malformed verdicts are repaired before they surface.
type RelevanceClassifier struct {
	oracle      ports.Oracle
	repair      *RepairController
	temperature float32
	logger      *slog.Logger
	observer    PipelineObserver
}

func NewRelevanceClassifier(oracle ports.Oracle, repair *RepairController, temperature float32, logger *slog.Logger, observer PipelineObserver) *RelevanceClassifier {
	if observer == nil {
		observer = nopObserver{}
	}
	return &RelevanceClassifier{
		oracle:      oracle,
		repair:      repair,
		temperature: temperature,
		logger:      logger,
		observer:    observer,
	}
}

// Classify merges the normalized samples and asks the oracle which merged
// (section, field) pairs are relevant. Declaring data relevant with an
// empty key set is treated as malformed output and repaired.
func (c *RelevanceClassifier) Classify(ctx context.Context, question string, samples []domain.TraceDocument) (domain.RelevanceResult, error) {
	if len(samples) == 0 {
		return domain.RelevanceResult{}, fmt.Errorf("classify relevance: no samples")
	}

	merged := domain.Normalize(samples[0], normalizeArrayItems, normalizeValues)
	for _, doc := range samples[1:] {
		merged.Merge(domain.Normalize(doc, normalizeArrayItems, normalizeValues), normalizeValues)
	}

	schemaJSON, err := json.Marshal(merged)
	if err != nil {
		return domain.RelevanceResult{}, fmt.Errorf("marshal merged sample: %w", err)
	}

	system := "Eres un clasificador de relevancia para documentos de trazabilidad textil. " +
		"Recibes el esquema consolidado de una muestra de documentos y una pregunta. " +
		"Indica que pares SECCION.campo son relevantes para responder la pregunta. " +
		"Si ningun campo puede responder la pregunta, devuelve has_relevant_data=false con una explicacion. " +
		"Responde solo con un objeto JSON: {\"has_relevant_data\": bool, \"keys\": [\"SECCION.campo\"], \"explanation\": string}."

	task := RepairTask{
		Stage:       "relevance",
		Input:       fmt.Sprintf("Esquema de la muestra:\n%s\n\nPregunta:\n%s", schemaJSON, question),
		TaskContext: system,
		Operation: func(ctx context.Context, input string) (string, error) {
			out, err := c.oracle.Complete(ctx, system, input, c.temperature)
			c.observer.OracleCall("relevance", err)
			return out, err
		},
		Validate: ValidateRelevancePayload,
	}

	raw, err := c.repair.Execute(ctx, task)
	if err != nil {
		return domain.RelevanceResult{}, err
	}

	var result domain.RelevanceResult
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		return domain.RelevanceResult{}, fmt.Errorf("parse relevance result: %w: %w", domain.ErrMalformedOracleOutput, err)
	}
	for i, key := range result.Keys {
		result.Keys[i] = strings.TrimSpace(key)
	}
	return result, nil
}
