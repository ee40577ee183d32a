package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmeshcher/redeem-system/internal/model"
)

// ErrProductInvalid возвращается при создании товара без имени, цены или кодов.
var ErrProductInvalid = errors.New("product requires name, positive price and at least one code")

// ImportItem описывает одну позицию пакетного импорта товаров.
type ImportItem struct {
	Name       string
	PriceCents int64
	RedeemCode string
	ImageURL   string
}

// AddProduct добавляет товар или, если товар с таким именем уже существует
// (без учёта регистра), дописывает коды в его пул и обновляет цену.
func (l *Ledger) AddProduct(ctx context.Context, name string, priceCents int64, imageURL string, codes []string) (*model.Product, error) {
	cleaned := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			cleaned = append(cleaned, c)
		}
	}

	if strings.TrimSpace(name) == "" || priceCents <= 0 || len(cleaned) == 0 {
		return nil, ErrProductInvalid
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	products, err := l.store.GetProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	var result model.Product
	if i := findProductByName(products, name); i >= 0 {
		products[i].RedeemCodes = append(products[i].RedeemCodes, cleaned...)
		products[i].PriceCents = priceCents
		if imageURL != "" {
			products[i].ImageURL = imageURL
		}
		result = products[i]
	} else {
		result = model.Product{
			ID:          newStringID(),
			Name:        name,
			PriceCents:  priceCents,
			ImageURL:    imageURL,
			RedeemCodes: cleaned,
		}
		products = append(products, result)
	}

	if err := l.store.SaveProducts(ctx, products); err != nil {
		return nil, fmt.Errorf("save products: %w", err)
	}

	l.publish(Event{Collection: CollectionProducts})
	return &result, nil
}

// ImportProducts сливает позиции пакетного импорта в каталог по тем же
// правилам, что и ручное добавление: совпадение имени без учёта регистра
// дописывает код к существующему товару. Возвращает число обработанных позиций.
func (l *Ledger) ImportProducts(ctx context.Context, items []ImportItem) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	products, err := l.store.GetProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("get products: %w", err)
	}

	imported := 0
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" || item.RedeemCode == "" {
			continue
		}

		if i := findProductByName(products, item.Name); i >= 0 {
			products[i].RedeemCodes = append(products[i].RedeemCodes, item.RedeemCode)
		} else {
			products = append(products, model.Product{
				ID:          newStringID(),
				Name:        item.Name,
				PriceCents:  item.PriceCents,
				ImageURL:    item.ImageURL,
				RedeemCodes: []string{item.RedeemCode},
			})
		}
		imported++
	}

	if imported == 0 {
		return 0, nil
	}

	if err := l.store.SaveProducts(ctx, products); err != nil {
		return 0, fmt.Errorf("save products: %w", err)
	}

	l.publish(Event{Collection: CollectionProducts})
	return imported, nil
}

func findProductByName(products []model.Product, name string) int {
	for i := range products {
		if strings.EqualFold(products[i].Name, name) {
			return i
		}
	}
	return -1
}

// DeleteProduct удаляет товар из каталога.
func (l *Ledger) DeleteProduct(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	products, err := l.store.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("get products: %w", err)
	}

	kept := products[:0]
	for _, p := range products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(products) {
		return ErrProductNotFound
	}

	if err := l.store.SaveProducts(ctx, kept); err != nil {
		return fmt.Errorf("save products: %w", err)
	}

	l.publish(Event{Collection: CollectionProducts})
	return nil
}

// AddWorker регистрирует новый бот-аккаунт в статусе active/online.
func (l *Ledger) AddWorker(ctx context.Context, email, password string) (*model.Worker, error) {
	if email == "" || password == "" {
		return nil, errors.New("worker requires email and password")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	workers, err := l.store.GetWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("get workers: %w", err)
	}

	worker := model.Worker{
		ID:       newStringID(),
		Email:    email,
		Password: password,
		Status:   model.WorkerStatusActive,
		Runtime:  model.WorkerRuntimeOnline,
	}
	workers = append(workers, worker)

	if err := l.store.SaveWorkers(ctx, workers); err != nil {
		return nil, fmt.Errorf("save workers: %w", err)
	}

	l.publish(Event{Collection: CollectionWorkers})
	return &worker, nil
}

// DeleteWorker удаляет бот-аккаунт.
func (l *Ledger) DeleteWorker(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	workers, err := l.store.GetWorkers(ctx)
	if err != nil {
		return fmt.Errorf("get workers: %w", err)
	}

	kept := workers[:0]
	for _, w := range workers {
		if w.ID != id {
			kept = append(kept, w)
		}
	}
	if len(kept) == len(workers) {
		return ErrWorkerNotFound
	}

	if err := l.store.SaveWorkers(ctx, kept); err != nil {
		return fmt.Errorf("save workers: %w", err)
	}

	l.publish(Event{Collection: CollectionWorkers})
	return nil
}

// SetWorkerStatus меняет административный статус воркера. Рабочий статус
// остаётся за планировщиком и здесь не затрагивается.
func (l *Ledger) SetWorkerStatus(ctx context.Context, id string, status model.WorkerStatus) error {
	if status != model.WorkerStatusActive && status != model.WorkerStatusDisabled {
		return fmt.Errorf("unknown worker status: %s", status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	workers, err := l.store.GetWorkers(ctx)
	if err != nil {
		return fmt.Errorf("get workers: %w", err)
	}

	for i := range workers {
		if workers[i].ID == id {
			workers[i].Status = status
			if err := l.store.SaveWorkers(ctx, workers); err != nil {
				return fmt.Errorf("save workers: %w", err)
			}
			l.publish(Event{Collection: CollectionWorkers})
			return nil
		}
	}

	return ErrWorkerNotFound
}
