package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestValidateIdentifier_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/validate" {
			t.Fatalf("path = %s, want /api/validate", r.URL.Path)
		}

		var req validateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.PlayerID != "12345" {
			t.Fatalf("player id = %s, want 12345", req.PlayerID)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ValidationResult{IsValid: true, Message: "Valid"}); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res := client.ValidateIdentifier(ctx, "12345")
	if !res.IsValid || res.Message != "Valid" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestValidateIdentifier_FallbackOnTransportError(t *testing.T) {
	// Закрытый сервер гарантирует транспортную ошибку.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tests := []struct {
		name     string
		playerID string
		valid    bool
	}{
		{
			name:     "digits in range",
			playerID: "1234567",
			valid:    true,
		},
		{
			name:     "too short",
			playerID: "123",
			valid:    false,
		},
		{
			name:     "not numeric",
			playerID: "abc12345",
			valid:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := client.ValidateIdentifier(ctx, tt.playerID)
			if res.IsValid != tt.valid {
				t.Fatalf("IsValid = %v, want %v", res.IsValid, tt.valid)
			}
		})
	}
}

func TestAnalyzeOutcome_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analyze" {
			t.Fatalf("path = %s, want /api/analyze", r.URL.Path)
		}

		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.ProductName != "60 UC" {
			t.Fatalf("product name = %s, want 60 UC", req.ProductName)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(AnalysisResult{
			Success:          true,
			UserNotification: "The items have been sent.",
		}); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res := client.AnalyzeOutcome(ctx, "Status: SUCCESS", "12345", "60 UC")
	if !res.Success || res.UserNotification != "The items have been sent." {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestAnalyzeOutcome_FallbackOnServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res := client.AnalyzeOutcome(ctx, "whatever", "12345", "60 UC")
	if res.Success {
		t.Fatalf("expected failure verdict on transport error")
	}
	if res.UserNotification != FallbackNotification {
		t.Fatalf("notification = %q, want %q", res.UserNotification, FallbackNotification)
	}
}

func TestAnalyzeOutcome_NilClient(t *testing.T) {
	var client *Client

	res := client.AnalyzeOutcome(context.Background(), "raw", "12345", "60 UC")
	if res.Success {
		t.Fatalf("expected failure verdict for unconfigured client")
	}
}

func TestParseBulkImport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/import" {
			t.Fatalf("path = %s, want /api/import", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode([]ImportedProduct{
			{Name: "60 UC", Price: 0.99, RedeemCode: "UC60-A1"},
			{Name: "325 UC", Price: 4.99, RedeemCode: "UC325-B1"},
		}); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	items := client.ParseBulkImport(context.Background(), "60 UC,0.99,UC60-A1")
	if len(items) != 2 || items[0].RedeemCode != "UC60-A1" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestParseBulkImport_EmptyOnFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	items := client.ParseBulkImport(context.Background(), "garbage")
	if len(items) != 0 {
		t.Fatalf("expected empty result, got %+v", items)
	}
}
