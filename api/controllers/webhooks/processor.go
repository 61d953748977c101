package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"github.com/angelmondragon/paygate-backend/api/responses"
	"github.com/angelmondragon/paygate-backend/api/validators"
	"github.com/angelmondragon/paygate-backend/internal/reconcile"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
)

const signatureHeader = "Cko-Signature"

type ReconcileService interface {
	Process(ctx context.Context, event *reconcile.Event) error
}

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, deliveryID string) (bool, error)
	Delete(ctx context.Context, deliveryID string) error
}

type signingConfig interface {
	WebhookSigningSecret() string
}

// ProcessorWebhook receives payment lifecycle notifications from the
// remote processor, verifies their signature, suppresses redeliveries
// and hands them to the reconciliation engine. The HTTP status is the
// processor's only feedback: 2xx acknowledges, anything else retries.
func ProcessorWebhook(svc ReconcileService, signing signingConfig, guard deliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}
		if signing == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signing config unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := verifySignature(payload, r.Header.Get(signatureHeader), signing.WebhookSigningSecret()); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var env reconcile.Envelope
		if err := validators.DecodeJSONBytes(payload, &env); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		event, err := reconcile.EventFromEnvelope(&env)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// Dedupe on the action id when present; events without one fall
		// back to the engine's own guards.
		deliveryID := event.ActionID
		if deliveryID != "" {
			seen, err := guard.CheckAndMark(ctx, deliveryID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if seen {
				responses.WriteSuccess(w, nil)
				return
			}
		}

		if err := svc.Process(ctx, event); err != nil {
			if deliveryID != "" {
				_ = guard.Delete(ctx, deliveryID)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("processor event %s handled", event.Type))
		}
		responses.WriteSuccess(w, nil)
	}
}

func verifySignature(payload []byte, signature, secret string) error {
	if signature == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature missing")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch")
	}
	return nil
}
