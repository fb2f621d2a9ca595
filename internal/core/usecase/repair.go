package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/core/ports"
)

// Validator checks one oracle output and, when it is unacceptable, explains
// why. The reason feeds the repair prompt verbatim.
type Validator func(output string) (bool, string)

// RepairTask is one fallible oracle-backed operation. Operation receives the
// current input, which the controller replaces with an oracle-generated
// correction after each failed attempt.
type RepairTask struct {
	Stage       string
	Input       string
	TaskContext string
	Operation   func(ctx context.Context, input string) (string, error)
	Validate    Validator
}

// RepairController retries a fallible operation, asking the oracle to
// produce a corrective replacement input between attempts. It never
// produces end-user text; exhaustion is reported as an error.
type RepairController struct {
	oracle      ports.Oracle
	maxAttempts int
	logger      *slog.Logger
	observer    PipelineObserver
}

func NewRepairController(oracle ports.Oracle, maxAttempts int, logger *slog.Logger, observer PipelineObserver) *RepairController {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &RepairController{
		oracle:      oracle,
		maxAttempts: maxAttempts,
		logger:      logger,
		observer:    observer,
	}
}

// Execute walks the attempt/validate/repair cycle until the task produces a
// valid output or maxAttempts is exhausted. A failed repair still consumes
// the next attempt with the unchanged input.
func (c *RepairController) Execute(ctx context.Context, task RepairTask) (string, error) {
	if task.Operation == nil {
		return "", fmt.Errorf("repair %s: nil operation", task.Stage)
	}

	input := task.Input
	var lastReason string
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		output, err := task.Operation(ctx, input)
		if err != nil {
			lastReason = err.Error()
			lastErr = err
		} else {
			ok, reason := validateOutput(task.Validate, output)
			if ok {
				return output, nil
			}
			lastReason = reason
			lastErr = nil
		}

		c.logger.Warn("stage attempt failed",
			"stage", task.Stage,
			"attempt", attempt,
			"reason", lastReason,
		)

		if attempt == c.maxAttempts {
			break
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		c.observer.RepairAttempt(task.Stage)
		repaired, repairErr := c.repairInput(ctx, task, input, lastReason)
		if repairErr != nil {
			c.logger.Warn("repair failed", "stage", task.Stage, "error", repairErr)
			continue
		}
		if repaired != "" {
			input = repaired
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("%s: attempts exhausted: %w", task.Stage, lastErr)
	}
	return "", fmt.Errorf("%s: attempts exhausted: %w: %s", task.Stage, domain.ErrMalformedOracleOutput, lastReason)
}

func (c *RepairController) repairInput(ctx context.Context, task RepairTask, input, reason string) (string, error) {
	system := "Eres un asistente que corrige entradas defectuosas. " +
		"Devuelve unicamente la entrada corregida, sin explicaciones ni comentarios."
	user := fmt.Sprintf(
		"Tarea original:\n%s\n\nEntrada que fallo:\n%s\n\nMotivo del fallo:\n%s\n\nGenera una entrada corregida que evite el fallo.",
		task.TaskContext, input, reason,
	)

	repaired, err := c.oracle.Complete(ctx, system, user, 0)
	c.observer.OracleCall(task.Stage+".repair", err)
	if err != nil {
		return "", err
	}
	return repaired, nil
}

func validateOutput(validate Validator, output string) (bool, string) {
	if validate == nil {
		return true, ""
	}
	return validate(output)
}
