// Package seed загружает начальные данные витрины из YAML-файла.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mmeshcher/redeem-system/internal/model"
	"github.com/mmeshcher/redeem-system/internal/store"
)

// File описывает структуру файла начальных данных. Цены и баланс задаются в
// долларах и конвертируются в центы при загрузке.
type File struct {
	Products []Product `yaml:"products"`
	Workers  []Worker  `yaml:"workers"`
	Profile  *Profile  `yaml:"profile"`
}

// Product описывает товар начальных данных.
type Product struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Price       float64  `yaml:"price"`
	ImageURL    string   `yaml:"image_url"`
	RedeemCodes []string `yaml:"redeem_codes"`
}

// Worker описывает бот-аккаунт начальных данных.
type Worker struct {
	ID       string `yaml:"id"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Status   string `yaml:"status"`
}

// Profile описывает клиентский профиль начальных данных.
type Profile struct {
	ID      string  `yaml:"id"`
	Name    string  `yaml:"name"`
	Balance float64 `yaml:"balance"`
}

func toCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

// Apply загружает файл начальных данных и заполняет только пустые коллекции
// хранилища. Отсутствующий файл не является ошибкой: сервис стартует с тем,
// что уже лежит в хранилище.
func Apply(ctx context.Context, s store.Store, path string, logger *zap.Logger) error {
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("seed file not found, skipping", zap.String("path", path))
			return nil
		}
		return fmt.Errorf("read seed file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	if err := applyProducts(ctx, s, file.Products); err != nil {
		return err
	}
	if err := applyWorkers(ctx, s, file.Workers); err != nil {
		return err
	}
	if err := applyProfile(ctx, s, file.Profile); err != nil {
		return err
	}

	logger.Info("seed applied",
		zap.String("path", path),
		zap.Int("products", len(file.Products)),
		zap.Int("workers", len(file.Workers)),
	)

	return nil
}

func applyProducts(ctx context.Context, s store.Store, seeds []Product) error {
	if len(seeds) == 0 {
		return nil
	}

	existing, err := s.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("read products: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	products := make([]model.Product, 0, len(seeds))
	for _, p := range seeds {
		products = append(products, model.Product{
			ID:          p.ID,
			Name:        p.Name,
			PriceCents:  toCents(p.Price),
			ImageURL:    p.ImageURL,
			RedeemCodes: p.RedeemCodes,
		})
	}

	return s.SaveProducts(ctx, products)
}

func applyWorkers(ctx context.Context, s store.Store, seeds []Worker) error {
	if len(seeds) == 0 {
		return nil
	}

	existing, err := s.GetWorkers(ctx)
	if err != nil {
		return fmt.Errorf("read workers: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	workers := make([]model.Worker, 0, len(seeds))
	for _, w := range seeds {
		status := model.WorkerStatus(w.Status)
		if status != model.WorkerStatusDisabled {
			status = model.WorkerStatusActive
		}

		workers = append(workers, model.Worker{
			ID:       w.ID,
			Email:    w.Email,
			Password: w.Password,
			Status:   status,
			Runtime:  model.WorkerRuntimeOnline,
		})
	}

	return s.SaveWorkers(ctx, workers)
}

func applyProfile(ctx context.Context, s store.Store, seed *Profile) error {
	if seed == nil {
		return nil
	}

	existing, err := s.GetProfile(ctx)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	if existing.ID != "" {
		return nil
	}

	return s.SaveProfile(ctx, model.UserProfile{
		ID:           seed.ID,
		Name:         seed.Name,
		BalanceCents: toCents(seed.Balance),
	})
}
