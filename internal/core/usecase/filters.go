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

// validatedFilters maps the categorical filter names to the vocabulary
// column backing their known-value list. The remaining filter names
// (clientStyle, boxNumber, label) are free-form and pass through unchecked.
var validatedFilters = map[string]domain.VocabularyField{
	"client":      domain.FieldClientName,
	"garmentType": domain.FieldGarmentType,
	"size":        domain.FieldSize,
	"gender":      domain.FieldGender,
	"age":         domain.FieldAge,
}

var freeFormFilters = []string{"clientStyle", "boxNumber", "label"}

// FilterExtractor turns a corrected question into a complete FilterSet.
// Extracted categorical values are canonicalized against the known
// vocabulary by fuzzy match; unknown filter names are dropped.
type FilterExtractor struct {
	oracle         ports.Oracle
	vocabulary     *VocabularyCache
	fuzzyThreshold float64
	temperature    float32
	logger         *slog.Logger
	observer       PipelineObserver
}

func NewFilterExtractor(oracle ports.Oracle, vocabulary *VocabularyCache, fuzzyThreshold float64, temperature float32, logger *slog.Logger, observer PipelineObserver) *FilterExtractor {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = 0.6
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &FilterExtractor{
		oracle:         oracle,
		vocabulary:     vocabulary,
		fuzzyThreshold: fuzzyThreshold,
		temperature:    temperature,
		logger:         logger,
		observer:       observer,
	}
}

// Extract returns a FilterSet where every known filter is present and every
// unmentioned one is the empty string. Extraction failures degrade to an
// empty FilterSet; the pipeline continues without filters.
func (e *FilterExtractor) Extract(ctx context.Context, question string) domain.FilterSet {
	var filters domain.FilterSet

	raw, err := e.oracle.Complete(ctx, filterSystemPrompt(), "Pregunta:\n"+question, e.temperature)
	e.observer.OracleCall("filters", err)
	if err != nil {
		e.logger.Warn("filter extraction skipped", "error", err)
		return filters
	}

	var extracted map[string]string
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &extracted); err != nil {
		e.logger.Warn("filter output unparseable", "error", err)
		return filters
	}

	for name, value := range extracted {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if field, ok := validatedFilters[name]; ok {
			value = e.canonicalize(ctx, field, value)
		}
		if !filters.Set(name, value) {
			e.logger.Debug("dropping unknown filter", "name", name)
		}
	}
	return filters
}

// canonicalize replaces the extracted value with the closest known one when
// the similarity clears the threshold; below-threshold values pass through
// unvalidated.
func (e *FilterExtractor) canonicalize(ctx context.Context, field domain.VocabularyField, value string) string {
	known, err := e.vocabulary.Values(ctx, field, false)
	if err != nil {
		e.logger.Warn("vocabulary unavailable for filter", "field", string(field), "error", err)
		return value
	}
	match, score := bestMatch(value, known)
	if match != "" && score >= e.fuzzyThreshold {
		if match != value {
			e.logger.Debug("canonicalized filter value",
				"field", string(field),
				"extracted", value,
				"canonical", match,
				"score", score,
			)
		}
		return match
	}
	return value
}

func filterSystemPrompt() string {
	names := make([]string, 0, len(validatedFilters)+len(freeFormFilters))
	for name := range validatedFilters {
		names = append(names, name)
	}
	names = append(names, freeFormFilters...)
	return fmt.Sprintf(
		"Eres un extractor de filtros para preguntas sobre trazabilidad textil. "+
			"Extrae unicamente valores mencionados explicitamente en la pregunta; nunca infieras. "+
			"Responde solo con un objeto JSON cuyas claves sean: %s. "+
			"Usa cadena vacia para los filtros no mencionados.",
		strings.Join(names, ", "),
	)
}
