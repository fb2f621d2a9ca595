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

// correctionSampleSize caps how many vocabulary values each field
// contributes to the correction prompt.
const correctionSampleSize = 40

var correctionFields = []domain.VocabularyField{
	domain.FieldClientName,
	domain.FieldGarmentType,
	domain.FieldSize,
	domain.FieldGender,
	domain.FieldAge,
}

// CorrectionStage fixes probable transcription errors of domain terms in
// the question. Advisory only: any failure falls back to the original
// question and never blocks the pipeline.
type CorrectionStage struct {
	oracle      ports.Oracle
	vocabulary  *VocabularyCache
	temperature float32
	logger      *slog.Logger
	observer    PipelineObserver
}

func NewCorrectionStage(oracle ports.Oracle, vocabulary *VocabularyCache, temperature float32, logger *slog.Logger, observer PipelineObserver) *CorrectionStage {
	if observer == nil {
		observer = nopObserver{}
	}
	return &CorrectionStage{
		oracle:      oracle,
		vocabulary:  vocabulary,
		temperature: temperature,
		logger:      logger,
		observer:    observer,
	}
}

// Correct returns the corrected question plus a mapping of original tokens
// to corrected ones. On any failure it returns the question unchanged.
func (s *CorrectionStage) Correct(ctx context.Context, question string) (string, map[string]string) {
	samples := s.vocabularySamples(ctx)
	if len(samples) == 0 {
		return question, map[string]string{}
	}

	system := "Eres un corrector de preguntas sobre trazabilidad textil. " +
		"Corrige unicamente errores de transcripcion de terminos del dominio (nombres de clientes, tallas, tipos de prenda). " +
		"No corrijas gramatica general. " +
		"Responde solo con un objeto JSON: {\"corrected_question\": string, \"corrections\": {original: corregido}}."
	user := fmt.Sprintf("Vocabulario conocido:\n%s\n\nPregunta:\n%s", samples, question)

	raw, err := s.oracle.Complete(ctx, system, user, s.temperature)
	s.observer.OracleCall("correction", err)
	if err != nil {
		s.logger.Warn("correction stage skipped", "error", err)
		return question, map[string]string{}
	}

	var result struct {
		CorrectedQuestion string            `json:"corrected_question"`
		Corrections       map[string]string `json:"corrections"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		s.logger.Warn("correction output unparseable", "error", err)
		return question, map[string]string{}
	}
	if strings.TrimSpace(result.CorrectedQuestion) == "" {
		return question, map[string]string{}
	}
	if result.Corrections == nil {
		result.Corrections = map[string]string{}
	}
	return result.CorrectedQuestion, result.Corrections
}

func (s *CorrectionStage) vocabularySamples(ctx context.Context) string {
	var b strings.Builder
	for _, field := range correctionFields {
		values, err := s.vocabulary.Values(ctx, field, false)
		if err != nil {
			s.logger.Warn("vocabulary unavailable for correction", "field", string(field), "error", err)
			continue
		}
		if len(values) == 0 {
			continue
		}
		if len(values) > correctionSampleSize {
			values = values[:correctionSampleSize]
		}
		fmt.Fprintf(&b, "%s: %s\n", string(field), strings.Join(values, ", "))
	}
	return b.String()
}
