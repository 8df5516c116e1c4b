package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"smartbot/internal/domain"
)

const (
	AlpacaPaperURL  = "https://paper-api.alpaca.markets"
	AlpacaDataURL   = "https://data.alpaca.markets"
	AlpacaStreamURL = "wss://stream.data.alpaca.markets/v2/iex"
)

// AlpacaAdapter talks to the Alpaca trading and market data APIs.
// Trading calls go to baseURL, quotes and bars to dataURL.
type AlpacaAdapter struct {
	apiKey    string
	apiSecret string
	baseURL   string
	dataURL   string
	streamURL string
	client    *http.Client

	wsConn         *websocket.Conn
	tradeCallbacks []func(symbol string, price float64)
	mu             sync.Mutex
}

func NewAlpacaAdapter(apiKey, apiSecret, baseURL, dataURL, streamURL string) *AlpacaAdapter {
	return &AlpacaAdapter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		dataURL:   dataURL,
		streamURL: streamURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// --- REST API ---

func (a *AlpacaAdapter) sendRequest(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	var body []byte
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = jsonBody
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("APCA-API-KEY-ID", a.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", a.apiSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func (a *AlpacaAdapter) GetAsset(ctx context.Context, symbol string) (*domain.Asset, error) {
	status, body, err := a.sendRequest(ctx, "GET", a.baseURL+"/v2/assets/"+symbol, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if status >= 400 {
		return nil, fmt.Errorf("alpaca asset error %d: %s", status, string(body))
	}

	var result struct {
		Symbol    string `json:"symbol"`
		Tradable  bool   `json:"tradable"`
		Shortable bool   `json:"shortable"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return &domain.Asset{
		Symbol:    result.Symbol,
		Tradable:  result.Tradable,
		Shortable: result.Shortable,
	}, nil
}

// CreateOrder submits a market day order. Rejections come back as a
// domain.RejectionError carrying the HTTP status so callers can decide
// whether the order is worth retrying.
func (a *AlpacaAdapter) CreateOrder(ctx context.Context, order *domain.OrderRequest) error {
	clientOrderID := order.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}

	payload := map[string]any{
		"symbol":          order.Symbol,
		"qty":             strconv.Itoa(order.Qty),
		"side":            order.Side,
		"type":            order.Type,
		"time_in_force":   order.TimeInForce,
		"client_order_id": clientOrderID,
	}

	status, body, err := a.sendRequest(ctx, "POST", a.baseURL+"/v2/orders", payload)
	if err != nil {
		return err
	}
	if status >= 400 {
		var result struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &result)
		if result.Message == "" {
			result.Message = string(body)
		}
		return &domain.RejectionError{
			Symbol: order.Symbol,
			Code:   status,
			Reason: result.Message,
		}
	}
	return nil
}

func (a *AlpacaAdapter) GetLatestTrade(ctx context.Context, symbol string) (float64, error) {
	url := a.dataURL + "/v2/stocks/" + symbol + "/trades/latest"
	status, body, err := a.sendRequest(ctx, "GET", url, nil)
	if err != nil {
		return 0, err
	}
	if status >= 400 {
		return 0, fmt.Errorf("alpaca latest trade error %d: %s", status, string(body))
	}

	var result struct {
		Trade struct {
			Price float64 `json:"p"`
		} `json:"trade"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}
	if result.Trade.Price <= 0 {
		return 0, fmt.Errorf("no trade price for %s", symbol)
	}
	return result.Trade.Price, nil
}

func (a *AlpacaAdapter) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	url := fmt.Sprintf("%s/v2/stocks/%s/bars?timeframe=%s&limit=%d", a.dataURL, symbol, timeframe, limit)
	status, body, err := a.sendRequest(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("alpaca bars error %d: %s", status, string(body))
	}

	var result struct {
		Bars []struct {
			Open  float64 `json:"o"`
			High  float64 `json:"h"`
			Low   float64 `json:"l"`
			Close float64 `json:"c"`
		} `json:"bars"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	if len(result.Bars) == 0 {
		return nil, domain.ErrNoBars
	}

	bars := make([]domain.Bar, 0, len(result.Bars))
	for _, raw := range result.Bars {
		bars = append(bars, domain.Bar{
			Open:  raw.Open,
			High:  raw.High,
			Low:   raw.Low,
			Close: raw.Close,
		})
	}
	return bars, nil
}

func (a *AlpacaAdapter) GetPositions(ctx context.Context) ([]*domain.Position, error) {
	status, body, err := a.sendRequest(ctx, "GET", a.baseURL+"/v2/positions", nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("alpaca positions error %d: %s", status, string(body))
	}

	var raw []struct {
		Symbol        string `json:"symbol"`
		Qty           string `json:"qty"`
		Side          string `json:"side"`
		AvgEntryPrice string `json:"avg_entry_price"`
		CurrentPrice  string `json:"current_price"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	positions := make([]*domain.Position, 0, len(raw))
	for _, item := range raw {
		qty, err := strconv.Atoi(item.Qty)
		if err != nil {
			return nil, fmt.Errorf("bad qty %q for %s: %w", item.Qty, item.Symbol, err)
		}
		entry, err := strconv.ParseFloat(item.AvgEntryPrice, 64)
		if err != nil {
			return nil, fmt.Errorf("bad entry price %q for %s: %w", item.AvgEntryPrice, item.Symbol, err)
		}
		current, _ := strconv.ParseFloat(item.CurrentPrice, 64)

		side := domain.SideLong
		if item.Side == "short" {
			side = domain.SideShort
			qty = -qty // the API reports short qty negative
		}
		if qty < 0 {
			qty = -qty
		}

		positions = append(positions, &domain.Position{
			Symbol:       item.Symbol,
			Side:         side,
			Qty:          qty,
			EntryPrice:   entry,
			EntryTime:    time.Now(),
			CurrentPrice: current,
			LastUpdate:   time.Now(),
		})
	}
	return positions, nil
}

// --- WebSocket ---

// OnTradeUpdate registers a callback fired for every live trade print
// received on the market data stream.
func (a *AlpacaAdapter) OnTradeUpdate(callback func(symbol string, price float64)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tradeCallbacks = append(a.tradeCallbacks, callback)
}

// ConnectStream opens the market data websocket, authenticates and
// subscribes to trade prints for the given symbols.
func (a *AlpacaAdapter) ConnectStream(symbols []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.wsConn != nil {
		return a.subscribe(symbols)
	}

	c, _, err := websocket.DefaultDialer.Dial(a.streamURL, nil)
	if err != nil {
		return err
	}
	a.wsConn = c

	authMsg := map[string]string{
		"action": "auth",
		"key":    a.apiKey,
		"secret": a.apiSecret,
	}
	if err := c.WriteJSON(authMsg); err != nil {
		c.Close()
		a.wsConn = nil
		return err
	}

	go a.readLoop()

	return a.subscribe(symbols)
}

// Subscribe adds trade-print subscriptions for the given symbols,
// dialing the stream first if no connection is open yet.
func (a *AlpacaAdapter) Subscribe(symbols []string) error {
	a.mu.Lock()
	if a.wsConn == nil {
		a.mu.Unlock()
		return a.ConnectStream(symbols)
	}
	defer a.mu.Unlock()
	return a.subscribe(symbols)
}

func (a *AlpacaAdapter) subscribe(symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	subMsg := map[string]any{
		"action": "subscribe",
		"trades": symbols,
	}
	return a.wsConn.WriteJSON(subMsg)
}

func (a *AlpacaAdapter) readLoop() {
	defer func() {
		a.wsConn.Close()
		a.mu.Lock()
		a.wsConn = nil
		a.mu.Unlock()
	}()

	for {
		_, message, err := a.wsConn.ReadMessage()
		if err != nil {
			log.Println("stream read error:", err)
			return
		}

		// The stream frames every payload as an array of events.
		var events []struct {
			Type   string  `json:"T"`
			Symbol string  `json:"S"`
			Price  float64 `json:"p"`
		}
		if err := json.Unmarshal(message, &events); err != nil {
			continue
		}

		for _, event := range events {
			if event.Type != "t" || event.Price <= 0 {
				continue
			}

			a.mu.Lock()
			callbacks := make([]func(string, float64), len(a.tradeCallbacks))
			copy(callbacks, a.tradeCallbacks)
			a.mu.Unlock()

			for _, cb := range callbacks {
				cb(event.Symbol, event.Price)
			}
		}
	}
}
