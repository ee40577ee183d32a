package store

import (
	"context"
	"testing"

	"github.com/mmeshcher/redeem-system/internal/model"
)

func TestMemoryDefaults(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	products, err := m.GetProducts(ctx)
	if err != nil {
		t.Fatalf("GetProducts error: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("expected empty products, got %d", len(products))
	}

	profile, err := m.GetProfile(ctx)
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	if profile != (model.UserProfile{}) {
		t.Fatalf("expected zero profile, got %+v", profile)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	in := []model.Product{
		{ID: "1", Name: "60 UC", PriceCents: 99, RedeemCodes: []string{"A1", "A2"}},
	}
	if err := m.SaveProducts(ctx, in); err != nil {
		t.Fatalf("SaveProducts error: %v", err)
	}

	out, err := m.GetProducts(ctx)
	if err != nil {
		t.Fatalf("GetProducts error: %v", err)
	}
	if len(out) != 1 || out[0].Name != "60 UC" || len(out[0].RedeemCodes) != 2 {
		t.Fatalf("unexpected products: %+v", out)
	}
}

func TestMemoryReadersGetCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.SaveProducts(ctx, []model.Product{
		{ID: "1", Name: "325 UC", PriceCents: 499, RedeemCodes: []string{"B1"}},
	}); err != nil {
		t.Fatalf("SaveProducts error: %v", err)
	}

	first, err := m.GetProducts(ctx)
	if err != nil {
		t.Fatalf("GetProducts error: %v", err)
	}

	// Мутация полученной копии не должна влиять на хранилище.
	first[0].RedeemCodes = nil
	first[0].Name = "mutated"

	second, err := m.GetProducts(ctx)
	if err != nil {
		t.Fatalf("GetProducts error: %v", err)
	}
	if second[0].Name != "325 UC" || len(second[0].RedeemCodes) != 1 {
		t.Fatalf("store state leaked through reader copy: %+v", second[0])
	}
}
