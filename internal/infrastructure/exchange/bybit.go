package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"go.uber.org/zap"
)

const (
	BybitBaseURL = "https://api.bybit.com"
	BybitWSURL   = "wss://stream.bybit.com/v5/public/linear"

	orderbookTopic = "orderbook.1."
	trendPeriod    = 20
)

type BybitConfig struct {
	APIKey      string        `yaml:"api_key"`
	APISecret   string        `yaml:"api_secret"`
	BaseURL     string        `yaml:"base_url"`
	WSURL       string        `yaml:"ws_url"`
	Category    string        `yaml:"category"`
	MaxQuoteAge time.Duration `yaml:"max_quote_age"`
}

// BybitAdapter serves quotes from the orderbook.1 stream with a REST
// fallback, places market orders with attached stop and target, and judges
// trend alignment from klines.
type BybitAdapter struct {
	apiKey      string
	apiSecret   string
	baseURL     string
	wsURL       string
	category    string
	maxQuoteAge time.Duration
	client      *http.Client
	logger      *zap.Logger
	timeNow     func() time.Time

	mu     sync.Mutex
	wsConn *websocket.Conn
	quotes map[string]domain.PriceQuote
	topics map[string]bool
}

func NewBybitAdapter(cfg BybitConfig, logger *zap.Logger) *BybitAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BybitBaseURL
	}
	if cfg.WSURL == "" {
		cfg.WSURL = BybitWSURL
	}
	if cfg.Category == "" {
		cfg.Category = "linear"
	}
	if cfg.MaxQuoteAge <= 0 {
		cfg.MaxQuoteAge = 5 * time.Second
	}
	return &BybitAdapter{
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		wsURL:       cfg.WSURL,
		category:    cfg.Category,
		maxQuoteAge: cfg.MaxQuoteAge,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
		timeNow:     time.Now,
		quotes:      make(map[string]domain.PriceQuote),
		topics:      make(map[string]bool),
	}
}

// --- REST API ---

func (b *BybitAdapter) sign(params string, timestamp int64, recvWindow int) string {
	// timestamp + apiKey + recvWindow + params
	toSign := fmt.Sprintf("%d%s%d%s", timestamp, b.apiKey, recvWindow, params)
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(toSign))
	return hex.EncodeToString(h.Sum(nil))
}

type bybitEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// sendRequest signs and sends a V5 request and returns the result payload.
// GET params go in the query string, POST params in the JSON body.
func (b *BybitAdapter) sendRequest(ctx context.Context, method, path string, query url.Values, payload map[string]any) (json.RawMessage, error) {
	timestamp := b.timeNow().UnixMilli()
	recvWindow := 5000

	var (
		body      []byte
		paramsStr string
	)
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = jsonBody
		paramsStr = string(jsonBody)
	}
	target := b.baseURL + path
	if len(query) > 0 {
		paramsStr = query.Encode()
		target += "?" + paramsStr
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-BAPI-API-KEY", b.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-BAPI-SIGN", b.sign(paramsStr, timestamp, recvWindow))
	req.Header.Set("X-BAPI-RECV-WINDOW", strconv.Itoa(recvWindow))
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("bybit %s %s: http %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	var env bybitEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("bybit %s %s: %w", method, path, err)
	}
	if env.RetCode != 0 {
		return nil, fmt.Errorf("bybit %s %s: retCode %d: %s", method, path, env.RetCode, env.RetMsg)
	}
	return env.Result, nil
}

// GetCurrentPrice returns the streamed top of book when it is fresh and falls
// back to the REST ticker otherwise.
func (b *BybitAdapter) GetCurrentPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	b.mu.Lock()
	q, ok := b.quotes[symbol]
	b.mu.Unlock()
	if ok && b.timeNow().Sub(q.Timestamp) <= b.maxQuoteAge {
		return q, nil
	}

	q, err := b.fetchTicker(ctx, symbol)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	b.mu.Lock()
	b.quotes[symbol] = q
	b.mu.Unlock()
	return q, nil
}

func (b *BybitAdapter) fetchTicker(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	res, err := b.sendRequest(ctx, http.MethodGet, "/v5/market/tickers", url.Values{
		"category": {b.category},
		"symbol":   {symbol},
	}, nil)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	var result struct {
		List []struct {
			Symbol    string `json:"symbol"`
			Bid1      string `json:"bid1Price"`
			Ask1      string `json:"ask1Price"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(res, &result); err != nil {
		return domain.PriceQuote{}, err
	}
	if len(result.List) == 0 {
		return domain.PriceQuote{}, fmt.Errorf("symbol %s not found", symbol)
	}
	t := result.List[0]
	bid, _ := decimal.NewFromString(t.Bid1)
	ask, _ := decimal.NewFromString(t.Ask1)
	if !bid.IsPositive() || !ask.IsPositive() {
		last, err := decimal.NewFromString(t.LastPrice)
		if err != nil || !last.IsPositive() {
			return domain.PriceQuote{}, fmt.Errorf("no price for %s", symbol)
		}
		bid, ask = last, last
	}
	return domain.PriceQuote{Symbol: symbol, Bid: bid, Ask: ask, Timestamp: b.timeNow().UTC()}, nil
}

func orderSide(side domain.Side) string {
	if side == domain.SideShort {
		return "Sell"
	}
	return "Buy"
}

// PlaceOrder sends a market order with the level's stop and target attached.
func (b *BybitAdapter) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderRef, error) {
	payload := map[string]any{
		"category":    b.category,
		"symbol":      req.Symbol,
		"side":        orderSide(req.Side),
		"orderType":   "Market",
		"qty":         req.Lot.String(),
		"timeInForce": "GTC",
		"orderLinkId": req.ClientID,
	}
	if req.StopPrice.IsPositive() {
		payload["stopLoss"] = req.StopPrice.String()
	}
	if req.TargetPrice.IsPositive() {
		payload["takeProfit"] = req.TargetPrice.String()
	}

	res, err := b.sendRequest(ctx, http.MethodPost, "/v5/order/create", nil, payload)
	if err != nil {
		return domain.OrderRef{}, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	var result struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := json.Unmarshal(res, &result); err != nil {
		return domain.OrderRef{}, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}

	b.logger.Info("Bybit order placed",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("qty", req.Lot.String()),
		zap.String("order_id", result.OrderID))
	return domain.OrderRef{ID: result.OrderID, Symbol: req.Symbol, Side: req.Side, Lot: req.Lot}, nil
}

// CloseOrder flattens the position opened by ref with a reduce-only market order.
func (b *BybitAdapter) CloseOrder(ctx context.Context, ref domain.OrderRef) error {
	closeSide := "Sell"
	if ref.Side == domain.SideShort {
		closeSide = "Buy"
	}
	payload := map[string]any{
		"category":   b.category,
		"symbol":     ref.Symbol,
		"side":       closeSide,
		"orderType":  "Market",
		"qty":        ref.Lot.String(),
		"reduceOnly": true,
	}
	if _, err := b.sendRequest(ctx, http.MethodPost, "/v5/order/create", nil, payload); err != nil {
		return fmt.Errorf("%w: close %s: %v", domain.ErrGateway, ref.ID, err)
	}
	b.logger.Info("Bybit position closed",
		zap.String("symbol", ref.Symbol), zap.String("order_id", ref.ID))
	return nil
}

func (b *BybitAdapter) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	res, err := b.sendRequest(ctx, http.MethodGet, "/v5/market/kline", url.Values{
		"category": {b.category},
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(res, &result); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(result.List))
	for _, raw := range result.List {
		// [startTime, open, high, low, close, volume, turnover]
		if len(raw) < 6 {
			continue
		}
		ts, _ := strconv.ParseInt(raw[0], 10, 64)
		c := domain.Candle{Time: ts / 1000}
		fields := []*decimal.Decimal{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for i, f := range fields {
			v, err := decimal.NewFromString(raw[i+1])
			if err != nil {
				return nil, fmt.Errorf("kline %s field %d: %w", symbol, i+1, err)
			}
			*f = v
		}
		candles = append(candles, c)
	}

	// Bybit returns newest first.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// GetAlignment reports whether the last close sits on side's side of the
// simple moving average of the timeframe.
func (b *BybitAdapter) GetAlignment(ctx context.Context, symbol, timeframe string, side domain.Side) (bool, error) {
	candles, err := b.GetCandles(ctx, symbol, timeframe, trendPeriod)
	if err != nil {
		return false, err
	}
	return TrendAligned(candles, side)
}

// TrendAligned compares the last close to the average close of candles.
func TrendAligned(candles []domain.Candle, side domain.Side) (bool, error) {
	if len(candles) < 2 {
		return false, fmt.Errorf("need at least 2 candles, have %d", len(candles))
	}
	sum := decimal.Zero
	for _, c := range candles {
		sum = sum.Add(c.Close)
	}
	sma := sum.Div(decimal.NewFromInt(int64(len(candles))))
	last := candles[len(candles)-1].Close
	if side == domain.SideShort {
		return last.LessThan(sma), nil
	}
	return last.GreaterThan(sma), nil
}

// --- WebSocket ---

// ConnectWS dials the public stream and subscribes to top of book for symbols.
func (b *BybitAdapter) ConnectWS(ctx context.Context, symbols []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.wsConn != nil {
		return b.subscribe(symbols)
	}

	c, _, err := websocket.DefaultDialer.DialContext(ctx, b.wsURL, nil)
	if err != nil {
		return err
	}
	b.wsConn = c

	go b.readLoop(c)

	return b.subscribe(symbols)
}

// Subscribe adds symbols to the stream, connecting first if needed.
func (b *BybitAdapter) Subscribe(ctx context.Context, symbols []string) error {
	return b.ConnectWS(ctx, symbols)
}

// Close drops the stream connection.
func (b *BybitAdapter) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wsConn == nil {
		return nil
	}
	err := b.wsConn.Close()
	b.wsConn = nil
	return err
}

func (b *BybitAdapter) subscribe(symbols []string) error {
	var args []string
	for _, s := range symbols {
		topic := orderbookTopic + s
		if b.topics[topic] {
			continue
		}
		b.topics[topic] = true
		args = append(args, topic)
	}
	if len(args) == 0 {
		return nil
	}
	return b.wsConn.WriteJSON(map[string]any{
		"op":   "subscribe",
		"args": args,
	})
}

func (b *BybitAdapter) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		b.mu.Lock()
		if b.wsConn == conn {
			b.wsConn = nil
			b.topics = make(map[string]bool)
		}
		b.mu.Unlock()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			b.logger.Warn("Bybit stream closed, falling back to REST quotes", zap.Error(err))
			return
		}
		if err := b.handleMessage(message); err != nil {
			b.logger.Debug("Bybit stream message skipped", zap.Error(err))
		}
	}
}

type orderbookEvent struct {
	Topic string `json:"topic"`
	TS    int64  `json:"ts"`
	Data  struct {
		Symbol string     `json:"s"`
		Bids   [][]string `json:"b"`
		Asks   [][]string `json:"a"`
	} `json:"data"`
}

// handleMessage updates the quote cache from one orderbook.1 push. A side
// missing from a delta keeps its previous price.
func (b *BybitAdapter) handleMessage(message []byte) error {
	var event orderbookEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return err
	}
	if !strings.HasPrefix(event.Topic, orderbookTopic) {
		return nil
	}
	symbol := strings.TrimPrefix(event.Topic, orderbookTopic)

	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.quotes[symbol]
	q.Symbol = symbol
	if p, ok := topPrice(event.Data.Bids); ok {
		q.Bid = p
	}
	if p, ok := topPrice(event.Data.Asks); ok {
		q.Ask = p
	}
	if !q.Bid.IsPositive() || !q.Ask.IsPositive() {
		return fmt.Errorf("incomplete book for %s", symbol)
	}
	q.Timestamp = b.timeNow().UTC()
	if event.TS > 0 {
		q.Timestamp = time.UnixMilli(event.TS).UTC()
	}
	b.quotes[symbol] = q
	return nil
}

func topPrice(levels [][]string) (decimal.Decimal, bool) {
	if len(levels) == 0 || len(levels[0]) < 2 {
		return decimal.Zero, false
	}
	size, err := decimal.NewFromString(levels[0][1])
	if err != nil || size.IsZero() {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(levels[0][0])
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}
