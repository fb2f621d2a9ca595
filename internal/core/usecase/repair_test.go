package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingObserver struct {
	mu      sync.Mutex
	repairs map[string]int
	oracle  map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		repairs: make(map[string]int),
		oracle:  make(map[string]int),
	}
}

func (o *countingObserver) StageCompleted(string, time.Duration) {}
func (o *countingObserver) OracleCall(stage string, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.oracle[stage]++
}
func (o *countingObserver) RepairAttempt(stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.repairs[stage]++
}

func TestRepairControllerReturnsFirstValidOutput(t *testing.T) {
	oracle := newOracleFake()
	ctrl := NewRepairController(oracle, 3, testLogger(), nil)

	calls := 0
	out, err := ctrl.Execute(context.Background(), RepairTask{
		Stage: "test",
		Input: "in",
		Operation: func(_ context.Context, input string) (string, error) {
			calls++
			return "out:" + input, nil
		},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "out:in" {
		t.Fatalf("unexpected output %q", out)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}

func TestRepairControllerExhaustsExactlyMaxAttempts(t *testing.T) {
	oracle := newOracleFake()
	oracle.respond("corrige entradas", "arreglada")
	observer := newCountingObserver()
	ctrl := NewRepairController(oracle, 3, testLogger(), observer)

	attempts := 0
	_, err := ctrl.Execute(context.Background(), RepairTask{
		Stage: "test",
		Input: "in",
		Operation: func(context.Context, string) (string, error) {
			attempts++
			return "", errors.New("always fails")
		},
	})
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
	if got := observer.repairs["test"]; got != 2 {
		t.Fatalf("expected repair hook invoked maxAttempts-1=2 times, got %d", got)
	}
}

func TestRepairControllerSubstitutesRepairedInput(t *testing.T) {
	oracle := newOracleFake()
	oracle.respond("corrige entradas", "entrada-corregida")
	ctrl := NewRepairController(oracle, 3, testLogger(), nil)

	var inputs []string
	out, err := ctrl.Execute(context.Background(), RepairTask{
		Stage: "test",
		Input: "entrada-rota",
		Operation: func(_ context.Context, input string) (string, error) {
			inputs = append(inputs, input)
			if input == "entrada-corregida" {
				return "ok", nil
			}
			return "", errors.New("entrada invalida")
		},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected output %q", out)
	}
	if len(inputs) != 2 || inputs[0] != "entrada-rota" || inputs[1] != "entrada-corregida" {
		t.Fatalf("unexpected inputs: %v", inputs)
	}
}

func TestRepairControllerTreatsInvalidOutputLikeFailure(t *testing.T) {
	oracle := newOracleFake()
	oracle.respond("corrige entradas", "da igual", "da igual")
	ctrl := NewRepairController(oracle, 2, testLogger(), nil)

	attempts := 0
	_, err := ctrl.Execute(context.Background(), RepairTask{
		Stage: "test",
		Input: "in",
		Operation: func(context.Context, string) (string, error) {
			attempts++
			return "salida", nil
		},
		Validate: func(string) (bool, string) { return false, "siempre invalida" },
	})
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestRepairControllerFailedRepairStillConsumesAttempt(t *testing.T) {
	oracle := newOracleFake()
	oracle.failWith = errors.New("oracle down")
	ctrl := NewRepairController(oracle, 3, testLogger(), nil)

	attempts := 0
	var inputs []string
	_, err := ctrl.Execute(context.Background(), RepairTask{
		Stage: "test",
		Input: "in",
		Operation: func(_ context.Context, input string) (string, error) {
			attempts++
			inputs = append(inputs, input)
			return "", errors.New("fails")
		},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts despite failed repairs, got %d", attempts)
	}
	for _, in := range inputs {
		if in != "in" {
			t.Fatalf("input should stay unchanged when repair fails, got %q", in)
		}
	}
}
