package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/core/ports"
)

// PipelineConfig carries the hand-tuned pipeline thresholds. Zero values
// fall back to the defaults the thresholds were tuned with.
type PipelineConfig struct {
	StrategyThreshold int
	SampleSize        int
	FullBudget        FetchBudget
	FilteredBudget    FetchBudget
	Temperature       float32
}

func (c PipelineConfig) normalize() PipelineConfig {
	if c.StrategyThreshold <= 0 {
		c.StrategyThreshold = 10
	}
	if c.SampleSize <= 0 {
		c.SampleSize = 3
	}
	if c.FullBudget.MaxTotalBytes <= 0 {
		c.FullBudget.MaxTotalBytes = 500_000
	}
	if c.FullBudget.MaxItemBytes <= 0 {
		c.FullBudget.MaxItemBytes = 60_000
	}
	if c.FilteredBudget.MaxTotalBytes <= 0 {
		c.FilteredBudget.MaxTotalBytes = 200_000
	}
	if c.FilteredBudget.MaxItemBytes <= 0 {
		c.FilteredBudget.MaxItemBytes = 5_000
	}
	return c
}

// AnswerUseCase runs the full question pipeline: correction, filter
// extraction, planning, store query, feasibility, relevance, fetch and
// synthesis. It holds no conversation state; confirmation is carried by the
// caller through the autoConfirm flag.
type AnswerUseCase struct {
	cfg PipelineConfig

	correction  *CorrectionStage
	filters     *FilterExtractor
	planner     *Planner
	gate        *FeasibilityGate
	classifier  *RelevanceClassifier
	fetcher     *FetchEngine
	synthesizer *Synthesizer

	store    ports.MetadataStore
	content  ports.ContentStore
	oracle   ports.Oracle
	logger   *slog.Logger
	observer PipelineObserver
}

type AnswerDeps struct {
	Correction  *CorrectionStage
	Filters     *FilterExtractor
	Planner     *Planner
	Gate        *FeasibilityGate
	Classifier  *RelevanceClassifier
	Fetcher     *FetchEngine
	Synthesizer *Synthesizer
	Store       ports.MetadataStore
	Content     ports.ContentStore
	Oracle      ports.Oracle
	Logger      *slog.Logger
	Observer    PipelineObserver
}

func NewAnswerUseCase(cfg PipelineConfig, deps AnswerDeps) *AnswerUseCase {
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &AnswerUseCase{
		cfg:         cfg.normalize(),
		correction:  deps.Correction,
		filters:     deps.Filters,
		planner:     deps.Planner,
		gate:        deps.Gate,
		classifier:  deps.Classifier,
		fetcher:     deps.Fetcher,
		synthesizer: deps.Synthesizer,
		store:       deps.Store,
		content:     deps.Content,
		oracle:      deps.Oracle,
		logger:      deps.Logger,
		observer:    observer,
	}
}

// Answer runs the pipeline for one question. Terminal non-answers
// (rejection, confirmation request, no matches, irrelevant documents) are
// returned as answers with user-facing text, not errors.
func (uc *AnswerUseCase) Answer(ctx context.Context, question string, autoConfirm bool) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("answer: %w: empty question", domain.ErrInvalidInput)
	}

	corrected, corrections := uc.timedCorrect(ctx, question)
	filters := uc.timedExtract(ctx, corrected)

	plan, err := uc.timedPlan(ctx, corrected, filters)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{
		Filters:     filters,
		Corrections: corrections,
	}

	var storeResult domain.StoreResult
	if plan.NeedsStoreQuery() {
		storeResult, err = uc.queryStore(ctx, corrected, plan.QueryInstruction)
		if err != nil {
			return nil, err
		}
		if storeResult.Empty() {
			answer.Outcome = domain.OutcomeNoMatches
			answer.Text = "No se encontraron registros que coincidan con la consulta. " +
				"Intente reformular la pregunta o revisar los nombres utilizados."
			return answer, nil
		}
	}

	if !plan.NeedsDocumentFetch {
		text, err := uc.timedSynthesize(ctx, SynthesisInput{
			Question:    question,
			Reasoning:   plan.Reasoning,
			StoreResult: storeResult,
		})
		if err != nil {
			return nil, err
		}
		answer.Outcome = domain.OutcomeAnswered
		answer.Text = text
		return answer, nil
	}

	candidates := domain.NewCandidateSet(storeResult.Hashes())
	answer.CandidateCount = len(candidates)
	if len(candidates) == 0 {
		answer.Outcome = domain.OutcomeNoMatches
		answer.Text = "No se encontraron documentos de trazabilidad para la consulta."
		return answer, nil
	}

	verdict := uc.timedGate(ctx, corrected, len(candidates))
	if !verdict.IsValid {
		answer.Outcome = domain.OutcomeRejected
		answer.Text = verdict.Message
		if answer.Text == "" {
			answer.Text = "La pregunta no puede responderse con los datos de trazabilidad disponibles."
		}
		answer.Suggestion = verdict.Suggestion
		return answer, nil
	}
	if verdict.RequiresConfirmation {
		answer.RecommendedLimit = verdict.RecommendedLimit
		if !autoConfirm {
			answer.Outcome = domain.OutcomeConfirmation
			answer.RequiresConfirmation = true
			answer.Text = confirmationText(verdict, len(candidates))
			answer.Suggestion = verdict.Suggestion
			return answer, nil
		}
		candidates = candidates.Limit(verdict.RecommendedLimit)
	} else if plan.DocumentLimit > 0 {
		candidates = candidates.Limit(plan.DocumentLimit)
	}

	var keys []string
	budget := uc.cfg.FullBudget
	if len(candidates) > uc.cfg.StrategyThreshold {
		relevance, sections := uc.classifySample(ctx, corrected, candidates)
		if !relevance.HasRelevantData {
			answer.Outcome = domain.OutcomeIrrelevant
			answer.Text = irrelevantText(relevance.Explanation, sections)
			return answer, nil
		}
		keys = relevance.Keys
		budget = uc.cfg.FilteredBudget
	}

	start := time.Now()
	evidence, report := uc.fetcher.Fetch(ctx, candidates, keys, budget)
	uc.observer.StageCompleted("fetch", time.Since(start))
	answer.Fetch = &report

	text, err := uc.timedSynthesize(ctx, SynthesisInput{
		Question:    question,
		Reasoning:   plan.Reasoning,
		StoreResult: storeResult,
		Evidence:    evidence,
		Report:      &report,
	})
	if err != nil {
		return nil, err
	}
	answer.Outcome = domain.OutcomeAnswered
	answer.Text = text
	return answer, nil
}

// queryStore executes the plan's instruction. An empty result triggers a
// single best-effort broadened retry before it is surfaced.
func (uc *AnswerUseCase) queryStore(ctx context.Context, question, instruction string) (domain.StoreResult, error) {
	start := time.Now()
	defer func() { uc.observer.StageCompleted("store_query", time.Since(start)) }()

	result, err := uc.store.ExecuteInstruction(ctx, instruction)
	if err != nil {
		return domain.StoreResult{}, fmt.Errorf("store query: %w", err)
	}
	if !result.Empty() {
		return result, nil
	}

	broadened, ok := uc.broadenInstruction(ctx, question, instruction)
	if !ok {
		return result, nil
	}
	retried, err := uc.store.ExecuteInstruction(ctx, broadened)
	if err != nil {
		uc.logger.Warn("broadened store query failed", "error", err)
		return result, nil
	}
	return retried, nil
}

func (uc *AnswerUseCase) broadenInstruction(ctx context.Context, question, instruction string) (string, bool) {
	system := "Eres un asistente SQL. La consulta devolvio cero filas. " +
		"Genera una version menos restrictiva de la misma consulta SELECT " +
		"(por ejemplo usando LIKE o quitando condiciones secundarias). " +
		"Devuelve unicamente la consulta SQL, sin explicaciones."
	user := fmt.Sprintf("Pregunta:\n%s\n\nConsulta original:\n%s", question, instruction)

	raw, err := uc.oracle.Complete(ctx, system, user, uc.cfg.Temperature)
	uc.observer.OracleCall("broaden_query", err)
	if err != nil {
		uc.logger.Warn("broaden query skipped", "error", err)
		return "", false
	}
	broadened := strings.TrimSpace(strings.Trim(raw, "`"))
	if ok, reason := ValidateStoreInstruction(broadened); !ok {
		uc.logger.Warn("broadened query rejected", "reason", reason)
		return "", false
	}
	return broadened, true
}

// classifySample fetches the front sample and classifies it. It also
// returns the available section names for the irrelevant-data early exit.
func (uc *AnswerUseCase) classifySample(ctx context.Context, question string, candidates domain.CandidateSet) (domain.RelevanceResult, []string) {
	start := time.Now()
	defer func() { uc.observer.StageCompleted("relevance", time.Since(start)) }()

	samples := make([]domain.TraceDocument, 0, uc.cfg.SampleSize)
	for _, hash := range candidates.Limit(uc.cfg.SampleSize) {
		doc, err := uc.content.Fetch(ctx, hash)
		if err != nil {
			uc.logger.Warn("sample fetch failed", "hash", hash, "error", err)
			continue
		}
		samples = append(samples, doc)
	}
	if len(samples) == 0 {
		// Nothing to sample means nothing to classify; fall back to the
		// filtered budget with full documents.
		return domain.RelevanceResult{HasRelevantData: true, Keys: nil}, nil
	}

	result, err := uc.classifier.Classify(ctx, question, samples)
	if err != nil {
		// An unusable verdict must not kill the question. Assume the
		// documents are relevant and fetch them whole.
		uc.logger.Warn("relevance classification failed, assuming relevant", "error", err)
		return domain.RelevanceResult{HasRelevantData: true}, nil
	}

	var sections []string
	if !result.HasRelevantData {
		sections = domain.AvailableSections(samples[0])
	}
	return result, sections
}

func (uc *AnswerUseCase) timedCorrect(ctx context.Context, question string) (string, map[string]string) {
	start := time.Now()
	defer func() { uc.observer.StageCompleted("correction", time.Since(start)) }()
	return uc.correction.Correct(ctx, question)
}

func (uc *AnswerUseCase) timedExtract(ctx context.Context, question string) domain.FilterSet {
	start := time.Now()
	defer func() { uc.observer.StageCompleted("filters", time.Since(start)) }()
	return uc.filters.Extract(ctx, question)
}

func (uc *AnswerUseCase) timedPlan(ctx context.Context, question string, filters domain.FilterSet) (domain.Plan, error) {
	start := time.Now()
	defer func() { uc.observer.StageCompleted("planner", time.Since(start)) }()
	return uc.planner.Plan(ctx, question, filters)
}

func (uc *AnswerUseCase) timedGate(ctx context.Context, question string, count int) domain.FeasibilityVerdict {
	start := time.Now()
	defer func() { uc.observer.StageCompleted("feasibility", time.Since(start)) }()
	return uc.gate.Evaluate(ctx, question, count)
}

func (uc *AnswerUseCase) timedSynthesize(ctx context.Context, input SynthesisInput) (string, error) {
	start := time.Now()
	defer func() { uc.observer.StageCompleted("synthesizer", time.Since(start)) }()
	return uc.synthesizer.Synthesize(ctx, input)
}

// confirmationText always states the candidate count itself; the oracle
// message is a preamble and cannot be trusted to include it.
func confirmationText(verdict domain.FeasibilityVerdict, count int) string {
	var b strings.Builder
	if msg := strings.TrimSpace(verdict.Message); msg != "" {
		b.WriteString(msg)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "Se encontraron %d registros. ¿Desea continuar analizando los primeros %d? Confirme para proceder.",
		count, verdict.RecommendedLimit)
	return b.String()
}

func irrelevantText(explanation string, sections []string) string {
	var b strings.Builder
	b.WriteString("Los documentos de trazabilidad no contienen datos relevantes para esta pregunta.")
	if explanation != "" {
		b.WriteString(" " + explanation)
	}
	if len(sections) > 0 {
		fmt.Fprintf(&b, " Secciones disponibles: %s.", strings.Join(sections, ", "))
	}
	return b.String()
}
