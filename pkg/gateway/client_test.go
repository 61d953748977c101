package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/paygate-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
)

func testConfig(baseURL string) config.GatewayConfig {
	return config.GatewayConfig{
		BaseURL:      baseURL,
		SecretKey:    "sk_test_abc",
		Timeout:      2 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(config.GatewayConfig{SecretKey: "sk"}, nil); err == nil {
		t.Fatal("expected error for missing base url")
	}
	if _, err := NewClient(config.GatewayConfig{BaseURL: "https://api.example.com"}, nil); err == nil {
		t.Fatal("expected error for missing secret key")
	}
}

func TestGetPaymentDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/pay_123" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_abc" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "pay_123",
			"status": "Captured",
			"amount": 1050,
			"currency": "USD",
			"metadata": {"order_id": "1001"}
		}`))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	details, err := client.GetPaymentDetails(context.Background(), "pay_123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.ID != "pay_123" {
		t.Errorf("expected payment id pay_123, got %q", details.ID)
	}
	if details.Amount != 1050 {
		t.Errorf("expected amount 1050, got %d", details.Amount)
	}
	if details.OrderRef() != "1001" {
		t.Errorf("expected order ref 1001, got %q", details.OrderRef())
	}
}

func TestGetPaymentDetailsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "pay_retry", "status": "Authorized"}`))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	details, err := client.GetPaymentDetails(context.Background(), "pay_retry")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.ID != "pay_retry" {
		t.Errorf("expected payment id pay_retry, got %q", details.ID)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestGetPaymentDetailsNotFoundDoesNotRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.GetPaymentDetails(context.Background(), "pay_missing")
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestGetPaymentDetailsEmptyID(t *testing.T) {
	client, err := NewClient(testConfig("https://api.example.com"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.GetPaymentDetails(context.Background(), "  "); err == nil {
		t.Fatal("expected validation error for empty payment id")
	}
}
