package bybit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// tickerStream maintains a public websocket subscription to the tickers
// topic of every instrument the client has touched, keeping the latest
// trade price in memory. It reconnects with exponential backoff and
// re-subscribes after every reconnect.
type tickerStream struct {
	url    string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	symbols map[string]bool
	prices  map[string]decimal.Decimal
}

func newTickerStream(url string, logger *slog.Logger) *tickerStream {
	return &tickerStream{
		url:     url,
		logger:  logger.With(slog.String("component", "bybit_ws")),
		symbols: make(map[string]bool),
		prices:  make(map[string]decimal.Decimal),
	}
}

// lastPrice returns the most recent streamed price for the symbol.
func (t *tickerStream) lastPrice(symbol string) (decimal.Decimal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	price, ok := t.prices[symbol]
	return price, ok
}

// subscribe registers interest in a symbol. Safe before and after connect.
func (t *tickerStream) subscribe(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.symbols[symbol] {
		return
	}
	t.symbols[symbol] = true
	if t.conn != nil {
		t.send(t.conn, symbol)
	}
}

// run owns the connection until the context is canceled.
func (t *tickerStream) run(ctx context.Context) error {
	backoff := reconnectMin
	for {
		if err := t.connectAndRead(ctx); err != nil {
			t.logger.Warn("ticker stream disconnected", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (t *tickerStream) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetReadLimit(2 << 20)

	t.mu.Lock()
	t.conn = conn
	for symbol := range t.symbols {
		t.send(conn, symbol)
	}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		t.handleMessage(data)
	}
}

func (t *tickerStream) send(conn *websocket.Conn, symbol string) {
	msg := struct {
		Op   string   `json:"op"`
		Args []string `json:"args"`
	}{Op: "subscribe", Args: []string{"tickers." + symbol}}
	if err := conn.WriteJSON(msg); err != nil {
		t.logger.Warn("ticker subscribe failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
	}
}

func (t *tickerStream) handleMessage(data []byte) {
	var msg struct {
		Topic string `json:"topic"`
		Data  struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if !strings.HasPrefix(msg.Topic, "tickers.") || msg.Data.LastPrice == "" {
		return
	}
	price, err := decimal.NewFromString(msg.Data.LastPrice)
	if err != nil {
		return
	}

	t.mu.Lock()
	t.prices[msg.Data.Symbol] = price
	t.mu.Unlock()
}
