package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/chrisisia/traza-assistant/internal/config"
	"github.com/chrisisia/traza-assistant/internal/core/ports"
	"github.com/chrisisia/traza-assistant/internal/core/usecase"
	"github.com/chrisisia/traza-assistant/internal/infrastructure/contentstore/swarm"
	"github.com/chrisisia/traza-assistant/internal/infrastructure/llm/deepseek"
	"github.com/chrisisia/traza-assistant/internal/infrastructure/queue/nats"
	"github.com/chrisisia/traza-assistant/internal/infrastructure/repository/postgres"
	"github.com/chrisisia/traza-assistant/internal/infrastructure/resilience"
	"github.com/chrisisia/traza-assistant/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	Queue ports.TraceQueue

	AnswerUC  ports.TraceAnswerer
	RecordUC  ports.TraceRecorder
	TraceUC   ports.TraceFetcher
	ProcessUC ports.TraceProcessor

	closeFn func()
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := postgres.NewTraceRepository(db)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.QueueProfile()),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init trace queue: %w", err)
	}

	oracle := deepseek.New(deepseek.Config{
		APIKey:   cfg.OracleAPIKey,
		BaseURL:  cfg.OracleBaseURL,
		Model:    cfg.OracleModel,
		Executor: resilience.NewExecutor(resilience.OracleProfile()),
	})

	content := swarm.New(swarm.Config{
		GatewayURL:     cfg.SwarmGatewayURL,
		BeeURL:         cfg.SwarmBeeURL,
		PostageBatchID: cfg.SwarmPostageBatch,
		Timeout:        time.Duration(cfg.SwarmFetchTimeoutS) * time.Second,
	})

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	observer := &metricsObserver{metrics: httpMetrics}

	temperature := float32(cfg.OracleTemperature)
	pipe := cfg.Pipeline

	vocabulary := usecase.NewVocabularyCache(store, pipe.VocabularyLimit)
	repair := usecase.NewRepairController(oracle, pipe.MaxAttempts, logger, observer)

	deps := usecase.AnswerDeps{
		Correction:  usecase.NewCorrectionStage(oracle, vocabulary, temperature, logger, observer),
		Filters:     usecase.NewFilterExtractor(oracle, vocabulary, pipe.FuzzyThreshold, temperature, logger, observer),
		Planner:     usecase.NewPlanner(oracle, repair, temperature, observer),
		Gate:        usecase.NewFeasibilityGate(oracle, pipe.ConfirmationCeiling, temperature, logger, observer),
		Classifier:  usecase.NewRelevanceClassifier(oracle, repair, temperature, logger, observer),
		Fetcher:     usecase.NewFetchEngine(content, pipe.FetchWorkers, time.Duration(cfg.SwarmFetchTimeoutS)*time.Second, logger),
		Synthesizer: usecase.NewSynthesizer(oracle, repair, temperature, pipe.SynthesisMaxBytes, pipe.SynthesisKeepFirst, observer),
		Store:       store,
		Content:     content,
		Oracle:      oracle,
		Logger:      logger,
		Observer:    observer,
	}
	answerUC := usecase.NewAnswerUseCase(usecase.PipelineConfig{
		StrategyThreshold: pipe.StrategyThreshold,
		SampleSize:        pipe.SampleSize,
		FullBudget: usecase.FetchBudget{
			MaxTotalBytes: pipe.FullTotalBytes,
			MaxItemBytes:  pipe.FullItemBytes,
		},
		FilteredBudget: usecase.FetchBudget{
			MaxTotalBytes: pipe.FilteredTotalBytes,
			MaxItemBytes:  pipe.FilteredItemBytes,
		},
		Temperature: temperature,
	}, deps)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: httpMetrics,
		Queue:   queue,

		AnswerUC:  answerUC,
		RecordUC:  usecase.NewRecordTraceUseCase(queue),
		TraceUC:   usecase.NewGetTraceUseCase(store, content),
		ProcessUC: usecase.NewProcessTraceUseCase(content, store),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// metricsObserver bridges pipeline telemetry into the Prometheus registry
// without letting the core depend on the metrics package.
type metricsObserver struct {
	metrics *metrics.HTTPServerMetrics
}

func (o *metricsObserver) StageCompleted(stage string, duration time.Duration) {
	o.metrics.ObserveStage("api", stage, duration)
}

func (o *metricsObserver) OracleCall(stage string, err error) {
	o.metrics.RecordOracleCall("api", stage, err)
}

func (o *metricsObserver) RepairAttempt(stage string) {
	o.metrics.RecordRepairAttempt("api", stage)
}
