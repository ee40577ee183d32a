package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/redeem-system/internal/model"
	"github.com/mmeshcher/redeem-system/internal/oracle"
)

// Executor выполняет внешний шаг выкупа и возвращает сырой текст результата.
type Executor interface {
	Run(ctx context.Context, worker model.Worker, playerID, code string, log func(string)) string
}

// Analyzer классифицирует сырой результат выкупа. Контракт не возвращает
// ошибок: недоступность сервиса превращается в вердикт «неуспех» внутри
// реализации.
type Analyzer interface {
	AnalyzeOutcome(ctx context.Context, rawText, playerID, productName string) oracle.AnalysisResult
}

const systemErrorNote = "System error during execution"

// Pipeline доводит назначенный заказ до конечного статуса: выполняет выкуп,
// получает вердикт анализа и проводит расчёт. Из конвейера не выходит ни одна
// ошибка — любой путь заканчивается сохранённым конечным статусом заказа и
// освобождённым воркером.
type Pipeline struct {
	ledger   Ledger
	executor Executor
	analyzer Analyzer
	logger   *zap.Logger
}

// NewPipeline создаёт конвейер выполнения заказов.
func NewPipeline(ledger Ledger, executor Executor, analyzer Analyzer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		ledger:   ledger,
		executor: executor,
		analyzer: analyzer,
		logger:   logger,
	}
}

// Process выполняет один назначенный заказ. Рабочий статус воркера
// возвращается в online на любом исходе, включая панику внутри шагов.
func (p *Pipeline) Process(ctx context.Context, order model.Order, worker model.Worker) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic",
				zap.Int64("orderID", order.ID),
				zap.Any("panic", r),
			)
			_ = p.ledger.FailOrder(ctx, order.ID, systemErrorNote)
		}

		if err := p.ledger.SetWorkerRuntime(ctx, worker.ID, model.WorkerRuntimeOnline); err != nil {
			p.logger.Error("release worker", zap.String("workerID", worker.ID), zap.Error(err))
		}
	}()

	// Клейм уже пометил воркера busy; повторная отметка идемпотентна и
	// покрывает прямой вызов конвейера мимо планировщика.
	if err := p.ledger.SetWorkerRuntime(ctx, worker.ID, model.WorkerRuntimeBusy); err != nil {
		p.logger.Error("mark worker busy", zap.String("workerID", worker.ID), zap.Error(err))
	}

	appendLog := func(line string) {
		if err := p.ledger.AppendOrderLog(ctx, order.ID, line); err != nil {
			p.logger.Error("append order log", zap.Int64("orderID", order.ID), zap.Error(err))
		}
	}

	appendLog(fmt.Sprintf("> [system] Starting redemption for order #%d", order.ID))

	// Отсутствие привязанного кода — фатальная ошибка целостности этого
	// заказа, без повторов.
	if order.RedeemCode == "" {
		appendLog("> [critical] No redeem code found in order record.")
		if err := p.ledger.FailOrder(ctx, order.ID, systemErrorNote); err != nil {
			p.logger.Error("fail order", zap.Int64("orderID", order.ID), zap.Error(err))
		}
		return
	}

	rawOutcome := p.executor.Run(ctx, worker, order.PlayerID, order.RedeemCode, appendLog)

	appendLog("> [system] Analyzing redemption result...")
	verdict := p.analyzer.AnalyzeOutcome(ctx, rawOutcome, order.PlayerID, order.ProductName)

	if err := p.ledger.SettleOrder(ctx, order.ID, verdict.Success, verdict.UserNotification); err != nil {
		p.logger.Error("settle order", zap.Int64("orderID", order.ID), zap.Error(err))
		_ = p.ledger.FailOrder(ctx, order.ID, systemErrorNote)
	}
}
