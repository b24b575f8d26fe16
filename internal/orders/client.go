package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/resilience"
)

// ErrUnavailable wraps transport failures and an open circuit.
var ErrUnavailable = errors.New("orders: order service unavailable")

// Error is a structured rejection returned by the order service.
type Error struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string {
	return fmt.Sprintf("orders: %d %s: %s", e.Status, e.Code, e.Message)
}

// ClientConfig configures the order-service client.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Breaker *resilience.Breaker
	// Transport defaults to an otelhttp-instrumented http.DefaultTransport.
	Transport http.RoundTripper
}

// Client creates orders over HTTP. Submissions are never retried: a lost
// response could otherwise create a duplicate order.
type Client struct {
	baseURL string
	token   string
	http    resilience.HTTPClient
}

// NewClient builds a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("orders: base url is required")
	}
	transport := cfg.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http: resilience.HTTPClient{
			Client:      &http.Client{Transport: transport},
			Breaker:     cfg.Breaker,
			MaxAttempts: 1,
			Timeout:     timeout,
		},
	}, nil
}

// CreateOrder posts the draft. The draft reference doubles as the
// Idempotency-Key so the order service can collapse duplicate submissions.
func (c *Client) CreateOrder(ctx context.Context, d Draft) (Created, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return Created{}, fmt.Errorf("orders: encode draft: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return Created{}, fmt.Errorf("orders: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.IdempotencyHeader, d.Reference)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Created{}, err
		}
		return Created{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Created{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		return Created{}, decodeError(resp.StatusCode, raw)
	}
	out, err := decodeCreated(raw)
	if err != nil {
		return Created{}, err
	}
	if out.Reference == "" {
		out.Reference = d.Reference
	}
	return out, nil
}

type createdBody struct {
	ID        string `json:"id"`
	OrderID   string `json:"orderId"`
	Reference string `json:"reference"`
}

func decodeCreated(raw []byte) (Created, error) {
	var envelope struct {
		Data *createdBody `json:"data"`
		createdBody
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Created{}, fmt.Errorf("orders: decode response: %w", err)
	}
	body := envelope.createdBody
	if envelope.Data != nil {
		body = *envelope.Data
	}
	id := body.OrderID
	if id == "" {
		id = body.ID
	}
	if id == "" {
		return Created{}, errors.New("orders: response carried no order id")
	}
	return Created{OrderID: id, Reference: body.Reference}, nil
}

func decodeError(status int, raw []byte) *Error {
	out := &Error{Status: status, Code: "ORDER_SERVICE_ERROR", Message: http.StatusText(status)}
	var envelope struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details any    `json:"details"`
		} `json:"error"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if text := strings.TrimSpace(string(raw)); text != "" {
			out.Message = text
		}
		return out
	}
	switch {
	case envelope.Error != nil:
		if envelope.Error.Code != "" {
			out.Code = envelope.Error.Code
		}
		if envelope.Error.Message != "" {
			out.Message = envelope.Error.Message
		}
		out.Details = envelope.Error.Details
	default:
		if envelope.Code != "" {
			out.Code = envelope.Code
		}
		if envelope.Message != "" {
			out.Message = envelope.Message
		}
	}
	return out
}
