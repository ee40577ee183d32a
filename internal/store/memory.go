package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mmeshcher/redeem-system/internal/model"
)

// Memory реализует Store в памяти процесса. Коллекции хранятся в
// сериализованном виде, поэтому читатели всегда получают независимую копию
// и не могут повлиять на состояние в обход записи.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory создаёт пустое хранилище в памяти.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
	}
}

func (m *Memory) get(name string, out any) error {
	m.mu.RLock()
	raw, ok := m.data[name]
	m.mu.RUnlock()

	if !ok {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode collection %s: %w", name, err)
	}
	return nil
}

func (m *Memory) set(name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}

	m.mu.Lock()
	m.data[name] = raw
	m.mu.Unlock()
	return nil
}

// GetProducts возвращает коллекцию товаров.
func (m *Memory) GetProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := m.get(collectionProducts, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// SaveProducts заменяет коллекцию товаров целиком.
func (m *Memory) SaveProducts(ctx context.Context, products []model.Product) error {
	return m.set(collectionProducts, products)
}

// GetWorkers возвращает коллекцию воркеров.
func (m *Memory) GetWorkers(ctx context.Context) ([]model.Worker, error) {
	var workers []model.Worker
	if err := m.get(collectionWorkers, &workers); err != nil {
		return nil, err
	}
	return workers, nil
}

// SaveWorkers заменяет коллекцию воркеров целиком.
func (m *Memory) SaveWorkers(ctx context.Context, workers []model.Worker) error {
	return m.set(collectionWorkers, workers)
}

// GetProfile возвращает клиентский профиль.
func (m *Memory) GetProfile(ctx context.Context) (model.UserProfile, error) {
	var profile model.UserProfile
	if err := m.get(collectionProfile, &profile); err != nil {
		return model.UserProfile{}, err
	}
	return profile, nil
}

// SaveProfile заменяет клиентский профиль.
func (m *Memory) SaveProfile(ctx context.Context, profile model.UserProfile) error {
	return m.set(collectionProfile, profile)
}

// GetOrders возвращает коллекцию заказов.
func (m *Memory) GetOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := m.get(collectionOrders, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// SaveOrders заменяет коллекцию заказов целиком.
func (m *Memory) SaveOrders(ctx context.Context, orders []model.Order) error {
	return m.set(collectionOrders, orders)
}

// GetFundingRequests возвращает коллекцию заявок на пополнение.
func (m *Memory) GetFundingRequests(ctx context.Context) ([]model.FundingRequest, error) {
	var requests []model.FundingRequest
	if err := m.get(collectionFunding, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// SaveFundingRequests заменяет коллекцию заявок целиком.
func (m *Memory) SaveFundingRequests(ctx context.Context, requests []model.FundingRequest) error {
	return m.set(collectionFunding, requests)
}

// Close освобождает ресурсы хранилища. Для памяти это no-op.
func (m *Memory) Close() error {
	return nil
}
