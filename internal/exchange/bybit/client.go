// Package bybit implements the exchange boundary against the Bybit v5 spot
// API: signed REST for orders and market data, plus a websocket ticker
// stream that keeps the latest prices hot.
package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds endpoints and credentials for one Bybit account.
type Config struct {
	RestURL    string
	WsURL      string
	APIKey     string
	APISecret  string
	RecvWindow int
}

// Client is the signed REST transport. The domain-facing operations live in
// exchange.go; the ticker stream in ws.go.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	ticker     *tickerStream
}

// New creates a Client. Call Run to start the ticker stream.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.RecvWindow <= 0 {
		cfg.RecvWindow = 5000
	}
	logger = logger.With(slog.String("component", "bybit"))
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
		ticker:     newTickerStream(cfg.WsURL, logger),
	}
}

// Run connects the ticker stream and blocks until the context is canceled.
func (c *Client) Run(ctx context.Context) error {
	return c.ticker.run(ctx)
}

// response is the envelope every v5 endpoint returns.
type response[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
	Time    int64  `json:"time"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, body any, auth bool, out any) error {
	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("bybit: marshal request body: %w", err)
		}
		bodyStr = string(payload)
		bodyReader = bytes.NewReader(payload)
	}

	urlStr := c.cfg.RestURL + path
	if len(params) > 0 {
		urlStr += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, bodyReader)
	if err != nil {
		return fmt.Errorf("bybit: build request: %w", err)
	}

	if auth {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		recvWindow := strconv.Itoa(c.cfg.RecvWindow)
		query := ""
		if method == http.MethodGet && len(params) > 0 {
			query = params.Encode()
		}

		signature := sign(c.cfg.APISecret, timestamp+c.cfg.APIKey+recvWindow+query+bodyStr)
		req.Header.Set("X-BAPI-API-KEY", c.cfg.APIKey)
		req.Header.Set("X-BAPI-SIGN", signature)
		req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
		req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bybit: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bybit: read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("bybit: %s returned %s", path, resp.Status)
	}

	var envelope struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("bybit: decode response %s: %w", path, err)
	}
	if envelope.RetCode != 0 {
		return fmt.Errorf("bybit: %s failed: %s (code=%d)", path, envelope.RetMsg, envelope.RetCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("bybit: decode response %s: %w", path, err)
	}
	return nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
