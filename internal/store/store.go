// Package store содержит контракт хранилища состояния и его реализации.
//
// Хранилище работает на уровне целых коллекций: чтение возвращает коллекцию
// целиком, запись заменяет её целиком. Частичных обновлений и блокировок
// контракт не предусматривает, поэтому дисциплину изменений обеспечивает
// вызывающая сторона (см. пакет ledger).
package store

import (
	"context"

	"github.com/mmeshcher/redeem-system/internal/model"
)

// Store определяет контракт доступа к именованным коллекциям состояния.
// Для отсутствующих коллекций возвращаются документированные значения по
// умолчанию: пустые срезы и нулевой профиль.
type Store interface {
	GetProducts(ctx context.Context) ([]model.Product, error)
	SaveProducts(ctx context.Context, products []model.Product) error

	GetWorkers(ctx context.Context) ([]model.Worker, error)
	SaveWorkers(ctx context.Context, workers []model.Worker) error

	GetProfile(ctx context.Context) (model.UserProfile, error)
	SaveProfile(ctx context.Context, profile model.UserProfile) error

	GetOrders(ctx context.Context) ([]model.Order, error)
	SaveOrders(ctx context.Context, orders []model.Order) error

	GetFundingRequests(ctx context.Context) ([]model.FundingRequest, error)
	SaveFundingRequests(ctx context.Context, requests []model.FundingRequest) error

	Close() error
}

// Имена коллекций, под которыми состояние лежит в долговременном хранилище.
const (
	collectionProducts = "products"
	collectionWorkers  = "workers"
	collectionProfile  = "profile"
	collectionOrders   = "orders"
	collectionFunding  = "funding_requests"
)
