package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/paygate-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
)

var (
	errSecretKeyRequired = errors.New("gateway secret key is required")
	errBaseURLRequired   = errors.New("gateway base url is required")
)

// PaymentDetails is the processor's view of a payment, fetched on demand.
// Only the fields the reconciliation engine consumes are decoded.
type PaymentDetails struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

// OrderRef returns the host order reference carried in payment metadata.
func (p *PaymentDetails) OrderRef() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Metadata["order_id"])
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the remote payment processor API.
type Client struct {
	http       httpDoer
	baseURL    string
	secretKey  string
	maxRetries uint64
	backoff    time.Duration
	logger     *logger.Logger
}

// NewClient validates the gateway credentials and builds the API client.
func NewClient(cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}

	return &Client{
		http:       &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		secretKey:  secretKey,
		maxRetries: cfg.MaxRetries,
		backoff:    backoff,
		logger:     logg,
	}, nil
}

// GetPaymentDetails fetches the payment object by processor payment id.
// The call is an idempotent read, so transient upstream failures are
// retried with backoff before surfacing as a dependency error.
func (c *Client) GetPaymentDetails(ctx context.Context, paymentID string) (*PaymentDetails, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	var details *PaymentDetails
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		fetched, err := c.fetchPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		details = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (c *Client) fetchPayment(ctx context.Context, paymentID string) (*PaymentDetails, error) {
	url := fmt.Sprintf("%s/payments/%s", c.baseURL, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build payment details request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call payment details"))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway credentials rejected")
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, retry.RetryableError(pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("gateway returned %d", resp.StatusCode)))
	default:
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("gateway returned %d", resp.StatusCode))
	}

	var details PaymentDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment details")
	}
	return &details, nil
}
