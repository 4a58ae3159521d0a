// Package stripe is a REST client for a Stripe-compatible payment-intents API.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/sony/gobreaker/v2"
)

const (
	DefaultBaseURL = "https://api.stripe.com"
	DefaultTimeout = 10 * time.Second
)

type Config struct {
	BaseURL   string
	SecretKey string
	// Timeout bounds each HTTP attempt.
	Timeout    time.Duration
	HTTPClient *http.Client
	// RetryBackoff is the pause before the single retry of a temporary failure.
	RetryBackoff time.Duration
}

type Client struct {
	baseURL string
	key     string
	timeout time.Duration
	backoff time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

var _ dompayment.Gateway = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.SecretKey,
		timeout: cfg.Timeout,
		backoff: cfg.RetryBackoff,
		http:    cfg.HTTPClient,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "payment-gateway",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			// declines and validation errors are answers, not outages
			IsSuccessful: func(err error) bool {
				return err == nil || !dompayment.IsTemporary(err)
			},
		}),
	}, nil
}

type intentJSON struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`
}

func (j intentJSON) toDomain() dompayment.Intent {
	return dompayment.Intent{
		ID:           j.ID,
		ClientSecret: j.ClientSecret,
		Status:       dompayment.IntentStatus(j.Status),
		Amount:       j.Amount,
		Currency:     strings.ToUpper(j.Currency),
		Metadata:     j.Metadata,
	}
}

type refundJSON struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

type errorJSON struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) CreateIntent(ctx context.Context, p dompayment.CreateIntentParams) (dompayment.Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.Amount, 10))
	form.Set("currency", strings.ToLower(p.Currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")
	form.Set("metadata[order_id]", p.OrderID)
	form.Set("metadata[order_number]", p.OrderNumber)
	if p.CustomerEmail != "" {
		form.Set("receipt_email", p.CustomerEmail)
	}

	var out intentJSON
	if err := c.do(ctx, "create_intent", http.MethodPost, "/v1/payment_intents", form, p.IdempotencyKey, &out); err != nil {
		return dompayment.Intent{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) RetrieveIntent(ctx context.Context, intentID string) (dompayment.Intent, error) {
	var out intentJSON
	if err := c.do(ctx, "retrieve_intent", http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil, "", &out); err != nil {
		return dompayment.Intent{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) CancelIntent(ctx context.Context, intentID string) (dompayment.Intent, error) {
	var out intentJSON
	key := "cancel-" + intentID
	if err := c.do(ctx, "cancel_intent", http.MethodPost, "/v1/payment_intents/"+url.PathEscape(intentID)+"/cancel", url.Values{}, key, &out); err != nil {
		return dompayment.Intent{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) Refund(ctx context.Context, p dompayment.RefundParams) (dompayment.Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", p.IntentID)
	form.Set("reason", "requested_by_customer")
	if p.Amount != nil {
		form.Set("amount", strconv.FormatInt(*p.Amount, 10))
	}
	if p.Reason != "" {
		form.Set("metadata[reason]", p.Reason)
	}

	var out refundJSON
	if err := c.do(ctx, "refund", http.MethodPost, "/v1/refunds", form, p.IdempotencyKey, &out); err != nil {
		return dompayment.Refund{}, err
	}
	return dompayment.Refund{ID: out.ID, Amount: out.Amount, Status: out.Status}, nil
}

// do runs one call through the breaker. A temporary failure is retried once when the call is safe to repeat.
func (c *Client) do(ctx context.Context, op, method, path string, form url.Values, idempotencyKey string, out any) error {
	retryable := method == http.MethodGet || idempotencyKey != ""

	body, err := c.attempt(ctx, op, method, path, form, idempotencyKey)
	if err != nil && retryable && dompayment.IsTemporary(err) {
		select {
		case <-ctx.Done():
			return &dompayment.GatewayError{Op: op, Code: "timeout", Temporary: true, Err: ctx.Err()}
		case <-time.After(c.backoff):
		}
		body, err = c.attempt(ctx, op, method, path, form, idempotencyKey)
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &dompayment.GatewayError{Op: op, Code: "bad_response", Message: "decode response", Err: err}
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, op, method, path string, form url.Values, idempotencyKey string) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, op, method, path, form, idempotencyKey)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &dompayment.GatewayError{Op: op, Code: "circuit_open", Message: "payment gateway unavailable", Err: err}
	}
	return body, err
}

func (c *Client) send(ctx context.Context, op, method, path string, form url.Values, idempotencyKey string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if form != nil && method != http.MethodGet {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &dompayment.GatewayError{Op: op, Code: "bad_request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &dompayment.GatewayError{Op: op, Code: "network", Temporary: isTemporaryNetErr(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &dompayment.GatewayError{Op: op, StatusCode: resp.StatusCode, Code: "network", Temporary: true, Err: err}
	}

	if resp.StatusCode >= 300 {
		var e errorJSON
		_ = json.Unmarshal(body, &e)
		code := e.Error.Code
		if code == "" {
			code = e.Error.Type
		}
		if code == "" {
			code = fmt.Sprintf("http_%d", resp.StatusCode)
		}
		return nil, &dompayment.GatewayError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Code:       code,
			Message:    e.Error.Message,
			Temporary:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}
	return body, nil
}

func isTemporaryNetErr(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return true
}
