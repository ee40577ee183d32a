// Package dispatch содержит планировщик очереди заказов и конвейер их выполнения.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/redeem-system/internal/model"
)

// Ledger определяет контракт учёта, используемый планировщиком и конвейером.
type Ledger interface {
	QueuedOrders(ctx context.Context) ([]model.Order, error)
	EligibleWorkers(ctx context.Context) ([]model.Worker, error)
	ClaimOrder(ctx context.Context, orderID int64, workerID string) (*model.Order, error)
	AppendOrderLog(ctx context.Context, orderID int64, line string) error
	SettleOrder(ctx context.Context, orderID int64, success bool, note string) error
	FailOrder(ctx context.Context, orderID int64, note string) error
	SetWorkerRuntime(ctx context.Context, workerID string, runtime model.WorkerRuntime) error
}

// Dispatcher раз в интервал сопоставляет самый старый заказ очереди со
// свободным воркером и передаёт пару конвейеру. За один тик назначается не
// больше одного заказа — пропускная способность ограничена намеренно.
type Dispatcher struct {
	ledger   Ledger
	pipeline *Pipeline
	interval time.Duration
	logger   *zap.Logger
}

// NewDispatcher создаёт планировщик с указанным интервалом опроса.
func NewDispatcher(ledger Ledger, pipeline *Pipeline, interval time.Duration, logger *zap.Logger) *Dispatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Dispatcher{
		ledger:   ledger,
		pipeline: pipeline,
		interval: interval,
		logger:   logger,
	}
}

// Run крутит цикл опроса до отмены контекста. Тики идут по таймеру и не
// дожидаются завершения запущенных конвейеров.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick выполняет один полный проход: FIFO-выбор заказа, выбор первого
// свободного воркера, атомарный клейм и запуск конвейера. Возвращает признак
// того, что заказ был назначен.
//
// Неудавшийся клейм не ошибка планировщика: заказ остаётся в очереди и будет
// повторён на следующем тике.
func (d *Dispatcher) Tick(ctx context.Context) bool {
	queued, err := d.ledger.QueuedOrders(ctx)
	if err != nil {
		d.logger.Error("read order queue", zap.Error(err))
		return false
	}
	if len(queued) == 0 {
		return false
	}

	workers, err := d.ledger.EligibleWorkers(ctx)
	if err != nil {
		d.logger.Error("read workers", zap.Error(err))
		return false
	}
	if len(workers) == 0 {
		return false
	}

	order := queued[0]
	worker := workers[0]

	claimed, err := d.ledger.ClaimOrder(ctx, order.ID, worker.ID)
	if err != nil {
		d.logger.Warn("claim failed, order stays queued",
			zap.Int64("orderID", order.ID),
			zap.String("workerID", worker.ID),
			zap.Error(err),
		)
		return false
	}

	d.logger.Info("order claimed",
		zap.Int64("orderID", claimed.ID),
		zap.String("workerID", worker.ID),
	)

	// Конвейер живёт дольше тика и не отменяется вместе с планировщиком:
	// начатый прогон всегда доходит до конечного статуса.
	go d.pipeline.Process(context.WithoutCancel(ctx), *claimed, worker)

	return true
}
