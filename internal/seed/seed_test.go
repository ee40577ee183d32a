package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/redeem-system/internal/model"
	"github.com/mmeshcher/redeem-system/internal/store"
)

const seedYAML = `
products:
  - id: "1"
    name: "60 UC"
    price: 0.99
    image_url: "https://picsum.photos/200/200?random=1"
    redeem_codes: ["UC60-CODE-A1", "UC60-CODE-A2"]
  - id: "2"
    name: "325 UC"
    price: 4.99
    redeem_codes: ["UC325-CODE-B1"]
workers:
  - id: "1"
    email: "bot1@example.com"
    password: "password123"
    status: "active"
profile:
  id: "user_001"
  name: "Demo Client"
  balance: 100.00
`

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestApply_FillsEmptyStore(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	if err := Apply(ctx, s, writeSeedFile(t, seedYAML), zap.NewNop()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	products, err := s.GetProducts(ctx)
	if err != nil {
		t.Fatalf("get products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2", len(products))
	}
	if products[0].PriceCents != 99 {
		t.Fatalf("price = %d cents, want 99", products[0].PriceCents)
	}
	if len(products[0].RedeemCodes) != 2 {
		t.Fatalf("code pool = %v, want two codes", products[0].RedeemCodes)
	}

	workers, err := s.GetWorkers(ctx)
	if err != nil {
		t.Fatalf("get workers: %v", err)
	}
	if len(workers) != 1 {
		t.Fatalf("got %d workers, want 1", len(workers))
	}
	if workers[0].Runtime != model.WorkerRuntimeOnline {
		t.Fatalf("worker runtime = %s, want online", workers[0].Runtime)
	}

	profile, err := s.GetProfile(ctx)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.BalanceCents != 10000 {
		t.Fatalf("balance = %d cents, want 10000", profile.BalanceCents)
	}
}

func TestApply_DoesNotOverwriteExistingData(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	if err := s.SaveProfile(ctx, model.UserProfile{ID: "user_001", Name: "Existing", BalanceCents: 42}); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	if err := Apply(ctx, s, writeSeedFile(t, seedYAML), zap.NewNop()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	profile, err := s.GetProfile(ctx)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.BalanceCents != 42 || profile.Name != "Existing" {
		t.Fatalf("existing profile was overwritten: %+v", profile)
	}

	// Пустые коллекции при этом заполняются.
	products, err := s.GetProducts(ctx)
	if err != nil {
		t.Fatalf("get products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2", len(products))
	}
}

func TestApply_MissingFileIsNotAnError(t *testing.T) {
	s := store.NewMemory()

	if err := Apply(context.Background(), s, filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop()); err != nil {
		t.Fatalf("apply with absent file: %v", err)
	}
}

func TestApply_MalformedFile(t *testing.T) {
	s := store.NewMemory()

	if err := Apply(context.Background(), s, writeSeedFile(t, "products: {not: [valid"), zap.NewNop()); err == nil {
		t.Fatalf("expected an error for malformed seed file")
	}
}

func TestApply_EmptyPathIsNoop(t *testing.T) {
	if err := Apply(context.Background(), store.NewMemory(), "", zap.NewNop()); err != nil {
		t.Fatalf("apply with empty path: %v", err)
	}
}
