package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/core/ports"
)

// FeasibilityGate validates a fetch-bearing plan against the real candidate
// count. Oracle failure falls back to a deterministic rule around the
// confirmation ceiling, so the gate itself never fails.
type FeasibilityGate struct {
	oracle              ports.Oracle
	confirmationCeiling int
	temperature         float32
	logger              *slog.Logger
	observer            PipelineObserver
}

func NewFeasibilityGate(oracle ports.Oracle, confirmationCeiling int, temperature float32, logger *slog.Logger, observer PipelineObserver) *FeasibilityGate {
	if confirmationCeiling <= 0 {
		confirmationCeiling = 100
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &FeasibilityGate{
		oracle:              oracle,
		confirmationCeiling: confirmationCeiling,
		temperature:         temperature,
		logger:              logger,
		observer:            observer,
	}
}

func (g *FeasibilityGate) Evaluate(ctx context.Context, question string, candidateCount int) domain.FeasibilityVerdict {
	system := fmt.Sprintf(
		"Eres un evaluador de viabilidad de consultas sobre trazabilidad textil. "+
			"Recibes una pregunta y el numero de documentos candidatos. "+
			"Reglas: pregunta especifica con %d candidatos o menos: aprobar sin confirmacion. "+
			"Pregunta ambigua o muchos candidatos: requerir confirmacion proponiendo un recommended_limit menor o igual a %d. "+
			"Pregunta sin sentido o fuera del dominio textil: rechazar con is_valid=false e incluir una sugerencia. "+
			"Responde solo con un objeto JSON: {\"is_valid\": bool, \"requires_confirmation\": bool, "+
			"\"recommended_limit\": int, \"message\": string, \"suggestion\": string}.",
		g.confirmationCeiling, g.confirmationCeiling,
	)
	user := fmt.Sprintf("Pregunta:\n%s\n\nDocumentos candidatos: %d", question, candidateCount)

	raw, err := g.oracle.Complete(ctx, system, user, g.temperature)
	g.observer.OracleCall("feasibility", err)
	if err != nil {
		g.logger.Warn("feasibility gate falling back", "error", err)
		return g.fallback(candidateCount)
	}

	var verdict domain.FeasibilityVerdict
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &verdict); err != nil {
		g.logger.Warn("feasibility output unparseable", "error", err)
		return g.fallback(candidateCount)
	}
	if verdict.RequiresConfirmation && verdict.RecommendedLimit <= 0 {
		verdict.RecommendedLimit = g.confirmationCeiling
	}
	if verdict.RecommendedLimit > g.confirmationCeiling {
		verdict.RecommendedLimit = g.confirmationCeiling
	}
	return verdict
}

// fallback applies the deterministic rule when the oracle cannot be
// consulted: large candidate sets require confirmation at the ceiling,
// small ones proceed unconditionally.
func (g *FeasibilityGate) fallback(candidateCount int) domain.FeasibilityVerdict {
	if candidateCount > g.confirmationCeiling {
		return domain.FeasibilityVerdict{
			IsValid:              true,
			RequiresConfirmation: true,
			RecommendedLimit:     g.confirmationCeiling,
			Message: fmt.Sprintf(
				"Se encontraron %d registros. Analizar todos tomaria demasiado tiempo.",
				candidateCount,
			),
		}
	}
	return domain.FeasibilityVerdict{IsValid: true}
}
