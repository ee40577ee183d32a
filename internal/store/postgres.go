package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/redeem-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres реализует Store поверх PostgreSQL. Каждая коллекция хранится
// одной строкой таблицы collections в виде JSONB, что сохраняет контракт
// «прочитать целиком / записать целиком».
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создаёт хранилище и инициализирует схему БД через миграции.
func NewPostgres(dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{pool: pool}

	if err := p.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

func (p *Postgres) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при временных ошибках: serialization failure,
// deadlock и обрывы соединения. Остальные ошибки возвращаются сразу.
func (p *Postgres) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func (p *Postgres) get(ctx context.Context, name string, out any) error {
	return p.withRetry(ctx, func() error {
		var raw []byte
		err := p.pool.QueryRow(ctx,
			`SELECT data FROM collections WHERE name = $1`,
			name,
		).Scan(&raw)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("select collection %s: %w", name, err)
		}

		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode collection %s: %w", name, err)
		}
		return nil
	})
}

func (p *Postgres) set(ctx context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}

	return p.withRetry(ctx, func() error {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO collections (name, data) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			name, raw,
		)
		if err != nil {
			return fmt.Errorf("upsert collection %s: %w", name, err)
		}
		return nil
	})
}

// GetProducts возвращает коллекцию товаров.
func (p *Postgres) GetProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := p.get(ctx, collectionProducts, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// SaveProducts заменяет коллекцию товаров целиком.
func (p *Postgres) SaveProducts(ctx context.Context, products []model.Product) error {
	return p.set(ctx, collectionProducts, products)
}

// GetWorkers возвращает коллекцию воркеров.
func (p *Postgres) GetWorkers(ctx context.Context) ([]model.Worker, error) {
	var workers []model.Worker
	if err := p.get(ctx, collectionWorkers, &workers); err != nil {
		return nil, err
	}
	return workers, nil
}

// SaveWorkers заменяет коллекцию воркеров целиком.
func (p *Postgres) SaveWorkers(ctx context.Context, workers []model.Worker) error {
	return p.set(ctx, collectionWorkers, workers)
}

// GetProfile возвращает клиентский профиль.
func (p *Postgres) GetProfile(ctx context.Context) (model.UserProfile, error) {
	var profile model.UserProfile
	if err := p.get(ctx, collectionProfile, &profile); err != nil {
		return model.UserProfile{}, err
	}
	return profile, nil
}

// SaveProfile заменяет клиентский профиль.
func (p *Postgres) SaveProfile(ctx context.Context, profile model.UserProfile) error {
	return p.set(ctx, collectionProfile, profile)
}

// GetOrders возвращает коллекцию заказов.
func (p *Postgres) GetOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := p.get(ctx, collectionOrders, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// SaveOrders заменяет коллекцию заказов целиком.
func (p *Postgres) SaveOrders(ctx context.Context, orders []model.Order) error {
	return p.set(ctx, collectionOrders, orders)
}

// GetFundingRequests возвращает коллекцию заявок на пополнение.
func (p *Postgres) GetFundingRequests(ctx context.Context) ([]model.FundingRequest, error) {
	var requests []model.FundingRequest
	if err := p.get(ctx, collectionFunding, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// SaveFundingRequests заменяет коллекцию заявок целиком.
func (p *Postgres) SaveFundingRequests(ctx context.Context, requests []model.FundingRequest) error {
	return p.set(ctx, collectionFunding, requests)
}

// Close закрывает пул соединений с БД.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
