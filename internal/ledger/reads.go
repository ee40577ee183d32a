package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/mmeshcher/redeem-system/internal/model"
)

// Products возвращает каталог товаров.
func (l *Ledger) Products(ctx context.Context) ([]model.Product, error) {
	return l.store.GetProducts(ctx)
}

// Workers возвращает всех воркеров.
func (l *Ledger) Workers(ctx context.Context) ([]model.Worker, error) {
	return l.store.GetWorkers(ctx)
}

// Profile возвращает клиентский профиль.
func (l *Ledger) Profile(ctx context.Context) (model.UserProfile, error) {
	return l.store.GetProfile(ctx)
}

// Orders возвращает все заказы, новые первыми.
func (l *Ledger) Orders(ctx context.Context) ([]model.Order, error) {
	orders, err := l.store.GetOrders(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ID > orders[j].ID
	})
	return orders, nil
}

// Order возвращает заказ по идентификатору.
func (l *Ledger) Order(ctx context.Context, id int64) (*model.Order, error) {
	orders, err := l.store.GetOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}

	for i := range orders {
		if orders[i].ID == id {
			o := orders[i]
			return &o, nil
		}
	}
	return nil, ErrOrderNotFound
}

// QueuedOrders возвращает заказы в очереди, старые первыми (FIFO).
// При равном времени создания порядок определяет монотонный идентификатор.
func (l *Ledger) QueuedOrders(ctx context.Context) ([]model.Order, error) {
	orders, err := l.store.GetOrders(ctx)
	if err != nil {
		return nil, err
	}

	queued := orders[:0]
	for _, o := range orders {
		if o.Status == model.OrderStatusQueued {
			queued = append(queued, o)
		}
	}

	sort.Slice(queued, func(i, j int) bool {
		if queued[i].CreatedAt.Equal(queued[j].CreatedAt) {
			return queued[i].ID < queued[j].ID
		}
		return queued[i].CreatedAt.Before(queued[j].CreatedAt)
	})
	return queued, nil
}

// ProcessingOrders возвращает заказы, находящиеся в работе.
func (l *Ledger) ProcessingOrders(ctx context.Context) ([]model.Order, error) {
	orders, err := l.store.GetOrders(ctx)
	if err != nil {
		return nil, err
	}

	processing := orders[:0]
	for _, o := range orders {
		if o.Status == model.OrderStatusProcessing {
			processing = append(processing, o)
		}
	}
	return processing, nil
}

// EligibleWorkers возвращает воркеров, готовых взять заказ.
func (l *Ledger) EligibleWorkers(ctx context.Context) ([]model.Worker, error) {
	workers, err := l.store.GetWorkers(ctx)
	if err != nil {
		return nil, err
	}

	eligible := workers[:0]
	for _, w := range workers {
		if w.Eligible() {
			eligible = append(eligible, w)
		}
	}
	return eligible, nil
}

// FundingRequests возвращает все заявки на пополнение, новые первыми.
func (l *Ledger) FundingRequests(ctx context.Context) ([]model.FundingRequest, error) {
	requests, err := l.store.GetFundingRequests(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests, nil
}
