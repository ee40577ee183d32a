// Package ledger реализует учёт заказов, баланса, склада и воркеров.
//
// Все изменения общего состояния проходят через один Ledger и сериализуются
// одним мьютексом: хранилище умеет только читать и писать коллекции целиком,
// поэтому дисциплина «единственного писателя» закрывает окно потерянных
// обновлений между чтением и записью.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmeshcher/redeem-system/internal/model"
	"github.com/mmeshcher/redeem-system/internal/store"
)

var (
	// ErrPlayerIDRequired возвращается при покупке без идентификатора игрока.
	ErrPlayerIDRequired = errors.New("player id is required")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrOutOfStock возвращается при покупке товара с пустым пулом кодов.
	ErrOutOfStock = errors.New("product is out of stock")
	// ErrInsufficientBalance возвращается, если баланса не хватает на покупку.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotClaimable возвращается при попытке назначить заказ не в статусе queued.
	ErrOrderNotClaimable = errors.New("order is not claimable")
	// ErrWorkerNotFound возвращается, если воркер не найден.
	ErrWorkerNotFound = errors.New("worker not found")
	// ErrWorkerNotEligible возвращается при попытке назначить заказ занятому
	// или отключённому воркеру.
	ErrWorkerNotEligible = errors.New("worker is not eligible")
	// ErrFundingNotFound возвращается, если заявка на пополнение не найдена.
	ErrFundingNotFound = errors.New("funding request not found")
	// ErrFundingResolved возвращается при повторном рассмотрении заявки.
	ErrFundingResolved = errors.New("funding request already resolved")
)

// Ledger выполняет все мутации состояния через хранилище коллекций.
type Ledger struct {
	mu    sync.Mutex
	store store.Store

	subMu sync.Mutex
	subs  map[chan Event]struct{}

	lastOrderID int64
}

// New создаёт Ledger поверх указанного хранилища.
func New(s store.Store) *Ledger {
	return &Ledger{
		store: s,
		subs:  make(map[chan Event]struct{}),
	}
}

// nextOrderID выдаёт идентификатор заказа, производный от времени создания и
// строго возрастающий даже при совпадении миллисекунд.
func (l *Ledger) nextOrderID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= l.lastOrderID {
		id = l.lastOrderID + 1
	}
	l.lastOrderID = id
	return id
}

func newStringID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// CreateOrder проводит покупку: проверяет наличие кода и достаточность
// баланса, привязывает первый код из пула и ставит заказ в очередь.
// При любой ошибке состояние не меняется.
func (l *Ledger) CreateOrder(ctx context.Context, playerID, productID string) (*model.Order, error) {
	if strings.TrimSpace(playerID) == "" {
		return nil, ErrPlayerIDRequired
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	products, err := l.store.GetProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	var product *model.Product
	for i := range products {
		if products[i].ID == productID {
			product = &products[i]
			break
		}
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if !product.InStock() {
		return nil, ErrOutOfStock
	}

	profile, err := l.store.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if profile.BalanceCents < product.PriceCents {
		return nil, ErrInsufficientBalance
	}

	orders, err := l.store.GetOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}

	now := time.Now()
	order := model.Order{
		ID:          l.nextOrderID(now),
		PlayerID:    playerID,
		ProductID:   product.ID,
		ProductName: product.Name,
		AmountCents: product.PriceCents,
		Status:      model.OrderStatusQueued,
		CreatedAt:   now,
		RedeemCode:  product.RedeemCodes[0],
		Log:         []string{"> [system] Order placed. Status: queued. Waiting for worker..."},
	}

	orders = append(orders, order)
	if err := l.store.SaveOrders(ctx, orders); err != nil {
		return nil, fmt.Errorf("save orders: %w", err)
	}

	l.publish(Event{Collection: CollectionOrders, OrderID: order.ID})
	return &order, nil
}

// ClaimOrder атомарно назначает заказ воркеру: переводит заказ в processing,
// привязывает воркера и помечает его busy одной мутацией, чтобы следующий
// тик планировщика не увидел воркера свободным.
func (l *Ledger) ClaimOrder(ctx context.Context, orderID int64, workerID string) (*model.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	orders, err := l.store.GetOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}

	var order *model.Order
	for i := range orders {
		if orders[i].ID == orderID {
			order = &orders[i]
			break
		}
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != model.OrderStatusQueued {
		return nil, ErrOrderNotClaimable
	}

	workers, err := l.store.GetWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("get workers: %w", err)
	}

	var worker *model.Worker
	for i := range workers {
		if workers[i].ID == workerID {
			worker = &workers[i]
			break
		}
	}
	if worker == nil {
		return nil, ErrWorkerNotFound
	}
	if !worker.Eligible() {
		return nil, ErrWorkerNotEligible
	}

	prev := *order

	order.Status = model.OrderStatusProcessing
	order.WorkerID = worker.ID
	order.Log = append(order.Log, fmt.Sprintf("> [queue] Job picked up by %s", worker.Email))
	worker.Runtime = model.WorkerRuntimeBusy

	// Запись заказа идёт первой: именно она защищает от повторного назначения.
	if err := l.store.SaveOrders(ctx, orders); err != nil {
		return nil, fmt.Errorf("save orders: %w", err)
	}
	if err := l.store.SaveWorkers(ctx, workers); err != nil {
		// Половинчатый клейм возвращается в очередь: конвейер не запустится,
		// и заказ в processing больше никогда не был бы подобран.
		*order = prev
		if revertErr := l.store.SaveOrders(ctx, orders); revertErr != nil {
			return nil, fmt.Errorf("save workers: %w (revert orders: %v)", err, revertErr)
		}
		return nil, fmt.Errorf("save workers: %w", err)
	}

	claimed := *order
	l.publish(Event{Collection: CollectionOrders, OrderID: claimed.ID})
	l.publish(Event{Collection: CollectionWorkers})
	return &claimed, nil
}

// AppendOrderLog перечитывает заказ и дописывает строку в его журнал.
// Журнал сохраняется после каждой записи, чтобы наблюдатели видели его вживую.
func (l *Ledger) AppendOrderLog(ctx context.Context, orderID int64, line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	orders, err := l.store.GetOrders(ctx)
	if err != nil {
		return fmt.Errorf("get orders: %w", err)
	}

	for i := range orders {
		if orders[i].ID == orderID {
			orders[i].Log = append(orders[i].Log, line)
			if err := l.store.SaveOrders(ctx, orders); err != nil {
				return fmt.Errorf("save orders: %w", err)
			}
			l.publish(Event{Collection: CollectionOrders, OrderID: orderID})
			return nil
		}
	}

	return ErrOrderNotFound
}

// SettleOrder завершает заказ по итогам анализа. При успехе списывает сумму
// заказа с баланса и удаляет ровно один экземпляр использованного кода из
// пула товара; при неудаче не трогает ни баланс, ни склад. Повторный вызов
// для завершённого заказа — no-op, поэтому расчёт не может пройти дважды.
func (l *Ledger) SettleOrder(ctx context.Context, orderID int64, success bool, note string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	orders, err := l.store.GetOrders(ctx)
	if err != nil {
		return fmt.Errorf("get orders: %w", err)
	}

	var order *model.Order
	for i := range orders {
		if orders[i].ID == orderID {
			order = &orders[i]
			break
		}
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.Status.Terminal() {
		return nil
	}

	var (
		profile  model.UserProfile
		products []model.Product
	)

	if success {
		profile, err = l.store.GetProfile(ctx)
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		// Достаточность средств проверена при покупке, на расчёте не перепроверяется.
		profile.BalanceCents -= order.AmountCents
		if err := l.store.SaveProfile(ctx, profile); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}

		products, err = l.store.GetProducts(ctx)
		if err != nil {
			return fmt.Errorf("get products: %w", err)
		}
		for i := range products {
			if products[i].ID != order.ProductID {
				continue
			}
			products[i].RedeemCodes = removeFirst(products[i].RedeemCodes, order.RedeemCode)
			break
		}
		if err := l.store.SaveProducts(ctx, products); err != nil {
			return fmt.Errorf("save products: %w", err)
		}

		order.Status = model.OrderStatusSuccess
		order.Log = append(order.Log, "> [success] "+note)
	} else {
		order.Status = model.OrderStatusFailed
		order.Log = append(order.Log,
			"> [failed] "+note,
			"> [inventory] Code preserved. Funds released.",
		)
	}

	order.Analysis = note
	if err := l.store.SaveOrders(ctx, orders); err != nil {
		if success {
			// Без терминальной записи заказ завершится неуспехом, поэтому
			// списание и изъятый код возвращаются обратно.
			profile.BalanceCents += order.AmountCents
			_ = l.store.SaveProfile(ctx, profile)
			for i := range products {
				if products[i].ID == order.ProductID {
					products[i].RedeemCodes = append(products[i].RedeemCodes, order.RedeemCode)
					break
				}
			}
			_ = l.store.SaveProducts(ctx, products)
		}
		return fmt.Errorf("save orders: %w", err)
	}

	l.publish(Event{Collection: CollectionOrders, OrderID: orderID})
	if success {
		l.publish(Event{Collection: CollectionProfile})
		l.publish(Event{Collection: CollectionProducts})
	}
	return nil
}

// removeFirst удаляет первое вхождение значения, остальные дубликаты сохраняются.
func removeFirst(codes []string, code string) []string {
	for i, c := range codes {
		if c == code {
			return append(codes[:i:i], codes[i+1:]...)
		}
	}
	return codes
}

// FailOrder завершает заказ системной ошибкой, не затрагивая баланс и склад.
// Накопленный журнал сохраняется. Завершённый заказ не меняется.
func (l *Ledger) FailOrder(ctx context.Context, orderID int64, note string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	orders, err := l.store.GetOrders(ctx)
	if err != nil {
		return fmt.Errorf("get orders: %w", err)
	}

	for i := range orders {
		if orders[i].ID != orderID {
			continue
		}
		if orders[i].Status.Terminal() {
			return nil
		}

		orders[i].Status = model.OrderStatusFailed
		orders[i].Analysis = note
		orders[i].Log = append(orders[i].Log, "> [critical] "+note)
		if err := l.store.SaveOrders(ctx, orders); err != nil {
			return fmt.Errorf("save orders: %w", err)
		}
		l.publish(Event{Collection: CollectionOrders, OrderID: orderID})
		return nil
	}

	return ErrOrderNotFound
}

// SetWorkerRuntime меняет рабочий статус воркера. Этим методом пользуется
// только подсистема планирования, админский интерфейс рабочий статус не пишет.
func (l *Ledger) SetWorkerRuntime(ctx context.Context, workerID string, runtime model.WorkerRuntime) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	workers, err := l.store.GetWorkers(ctx)
	if err != nil {
		return fmt.Errorf("get workers: %w", err)
	}

	for i := range workers {
		if workers[i].ID == workerID {
			workers[i].Runtime = runtime
			if err := l.store.SaveWorkers(ctx, workers); err != nil {
				return fmt.Errorf("save workers: %w", err)
			}
			l.publish(Event{Collection: CollectionWorkers})
			return nil
		}
	}

	return ErrWorkerNotFound
}
