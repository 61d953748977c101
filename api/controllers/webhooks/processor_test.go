package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/paygate-backend/internal/reconcile"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
)

type fakeReconcileService struct {
	calls int
	err   error
	last  *reconcile.Event
}

func (f *fakeReconcileService) Process(ctx context.Context, event *reconcile.Event) error {
	f.calls++
	f.last = event
	return f.err
}

type fakeSigning struct {
	secret string
}

func (f *fakeSigning) WebhookSigningSecret() string {
	return f.secret
}

type fakeGuard struct {
	seen    map[string]bool
	deletes int
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{seen: map[string]bool{}}
}

func (f *fakeGuard) CheckAndMark(ctx context.Context, deliveryID string) (bool, error) {
	if f.seen[deliveryID] {
		return true, nil
	}
	f.seen[deliveryID] = true
	return false, nil
}

func (f *fakeGuard) Delete(ctx context.Context, deliveryID string) error {
	f.deletes++
	delete(f.seen, deliveryID)
	return nil
}

func signedRequest(t *testing.T, secret string, env reconcile.Envelope) *http.Request {
	t.Helper()

	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/processor", bytes.NewReader(payload))
	req.Header.Set(signatureHeader, hex.EncodeToString(mac.Sum(nil)))
	return req
}

func captureEnvelope() reconcile.Envelope {
	return reconcile.Envelope{
		Type: "payment_captured",
		Data: reconcile.EnvelopeData{
			ID:       "pay_1",
			ActionID: "act_1",
			Amount:   1000,
			Currency: "USD",
			Metadata: map[string]string{"order_id": "1001"},
		},
	}
}

func TestProcessorWebhook_SuccessAndDuplicate(t *testing.T) {
	service := &fakeReconcileService{}
	guard := newFakeGuard()
	handler := ProcessorWebhook(service, &fakeSigning{secret: "whsec_test"}, guard, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, "whsec_test", captureEnvelope()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
	if service.last == nil || service.last.ActionID != "act_1" {
		t.Fatalf("unexpected event %+v", service.last)
	}

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, signedRequest(t, "whsec_test", captureEnvelope()))
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate suppressed, call count %d", service.calls)
	}
}

func TestProcessorWebhook_InvalidSignature(t *testing.T) {
	service := &fakeReconcileService{}
	handler := ProcessorWebhook(service, &fakeSigning{secret: "whsec_test"}, newFakeGuard(), nil)

	req := signedRequest(t, "whsec_wrong", captureEnvelope())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("service must not run on bad signature")
	}
}

func TestProcessorWebhook_MissingSignature(t *testing.T) {
	service := &fakeReconcileService{}
	handler := ProcessorWebhook(service, &fakeSigning{secret: "whsec_test"}, newFakeGuard(), nil)

	payload, _ := json.Marshal(captureEnvelope())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/processor", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing signature, got %d", rec.Code)
	}
}

func TestProcessorWebhook_FailureClearsGuard(t *testing.T) {
	service := &fakeReconcileService{err: pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable")}
	guard := newFakeGuard()
	handler := ProcessorWebhook(service, &fakeSigning{secret: "whsec_test"}, guard, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, "whsec_test", captureEnvelope()))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if guard.deletes != 1 {
		t.Fatalf("expected guard cleared for retry, deletes=%d", guard.deletes)
	}
	if guard.seen["act_1"] {
		t.Fatal("expected delivery mark removed after failure")
	}

	// The processor's retry should now reach the service again.
	service.err = nil
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, signedRequest(t, "whsec_test", captureEnvelope()))
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on retry, got %d", rec2.Code)
	}
	if service.calls != 2 {
		t.Fatalf("expected retry processed, call count %d", service.calls)
	}
}

func TestProcessorWebhook_EventWithoutActionIDSkipsGuard(t *testing.T) {
	service := &fakeReconcileService{}
	guard := newFakeGuard()
	handler := ProcessorWebhook(service, &fakeSigning{secret: "whsec_test"}, guard, nil)

	env := reconcile.Envelope{
		Type: "payment_canceled",
		Data: reconcile.EnvelopeData{ID: "pay_1"},
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, "whsec_test", env))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(guard.seen) != 0 {
		t.Fatalf("guard must not mark deliveries without action ids, got %v", guard.seen)
	}
	if service.calls != 1 {
		t.Fatalf("expected service called, got %d", service.calls)
	}
}

func TestProcessorWebhook_NilDeps(t *testing.T) {
	handler := ProcessorWebhook(nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/processor", bytes.NewReader(nil)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
