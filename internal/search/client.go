package search

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

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single webhook call, measured from send.
	DefaultTimeout = 60 * time.Second

	queryParam = "query"
)

var (
	errMissingEndpoint = errors.New("search: endpoint required")
	errEmptyPayload    = errors.New("response body was null")
)

// Params holds the search request. It must carry a non-empty "query"; every
// other field is forwarded to the webhook verbatim.
type Params map[string]any

// Query returns the query string, or "" when absent or not a string.
func (p Params) Query() string {
	query, _ := p[queryParam].(string)
	return query
}

// ClientConfig configures the webhook client.
type ClientConfig struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client posts search params to the webhook and normalizes the response.
// It holds no state between calls; concurrent searches run independently.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a Client with validated configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errMissingEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:   endpoint,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Search sends one POST with params as the JSON body and returns the normalized records.
// Failures are *Error values; a cancelled parent context is returned as is.
func (c *Client) Search(ctx context.Context, params Params) ([]PersonRecord, error) {
	if strings.TrimSpace(params.Query()) == "" {
		return nil, newError(KindInvalidRequest, 0, nil)
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, newError(KindInvalidRequest, 0, err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := c.post(requestCtx, body)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return nil, ctxErr
		}
		var searchErr *Error
		if errors.As(err, &searchErr) {
			c.logger.Warn("search failed",
				zap.String("kind", string(searchErr.Kind)),
				zap.Int("status", searchErr.StatusCode),
				zap.Error(searchErr.Err),
			)
		}
		return nil, err
	}

	if message, limited := rateLimitMessage(payload); limited {
		c.logger.Warn("search rate limited", zap.String("message", message))
		return nil, newError(KindRateLimited, http.StatusOK, errors.New(message))
	}

	records := Normalize(payload)
	c.logger.Debug("search completed",
		zap.String("shape", DetectShape(payload).String()),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// post performs the request and decodes the body, classifying every failure.
func (c *Client) post(ctx context.Context, body []byte) (any, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindNetworkError, 0, err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer response.Body.Close()

	if status := response.StatusCode; status < 200 || status > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		return nil, classifyStatus(status)
	}

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, newError(KindUnexpectedResponse, response.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	if payload == nil {
		return nil, newError(KindUnexpectedResponse, response.StatusCode, errEmptyPayload)
	}
	return payload, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return newError(KindRequestTimeout, 0, err)
	}
	return newError(KindNetworkError, 0, err)
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusNotFound:
		return newError(KindServiceNotFound, status, nil)
	case status >= http.StatusInternalServerError:
		return newError(KindServerError, status, nil)
	default:
		return newError(KindUnexpectedResponse, status, nil)
	}
}
