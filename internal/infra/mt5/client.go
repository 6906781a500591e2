package mt5

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"market_voice/internal/domain"

	"github.com/shopspring/decimal"
)

// symbolResponse is the bridge's answer to a symbol select request.
type symbolResponse struct {
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Digits  int    `json:"digits"`
}

// tickResponse is one quote snapshot from the bridge.
type tickResponse struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	TimeMS int64   `json:"time_msc"`
}

// Client polls an MT5 terminal bridge over HTTP. It satisfies
// domain.PriceSource: Connect selects the configured symbols in the
// terminal, Poll fetches the latest bid per symbol.
type Client struct {
	baseURL    string
	symbols    []string
	available  []string
	httpClient *http.Client
}

// NewClient creates a bridge client for the given symbols.
func NewClient(baseURL string, symbols []string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		symbols: symbols,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Connect selects every configured symbol in the terminal and records
// which ones the bridge can serve. It fails when no symbol is available;
// the caller treats that as fatal and aborts startup.
func (c *Client) Connect(ctx context.Context) error {
	c.available = c.available[:0]

	for _, symbol := range c.symbols {
		ok, err := c.selectSymbol(ctx, symbol)
		if err != nil {
			return domain.NewFatalNetworkError("connect", err)
		}
		if !ok {
			slog.Warn("Symbol not available on bridge", slog.String("symbol", symbol))
			continue
		}
		c.available = append(c.available, symbol)
	}

	if len(c.available) == 0 {
		return fmt.Errorf("%w: none of %d symbols selectable", domain.ErrFeedUnavailable, len(c.symbols))
	}

	slog.Info("✅ MT5 bridge connected", slog.Int("symbols", len(c.available)))
	return nil
}

func (c *Client) selectSymbol(ctx context.Context, symbol string) (bool, error) {
	url := fmt.Sprintf("%s/symbols/%s/select", c.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}

	var sr symbolResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return false, err
	}
	return sr.Visible, nil
}

// Symbols returns the symbols confirmed by Connect.
func (c *Client) Symbols() []string {
	return c.available
}

// Poll fetches the latest bid for a symbol. A bridge answer of 404 or
// 204 means no fresh tick and is not an error.
func (c *Client) Poll(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	url := fmt.Sprintf("%s/ticks/%s", c.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, false, domain.NewNetworkError("poll", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return decimal.Zero, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, false, domain.NewNetworkError("poll",
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, false, domain.NewNetworkError("read", err)
	}

	var tick tickResponse
	if err := json.Unmarshal(body, &tick); err != nil {
		return decimal.Zero, false, domain.NewNetworkError("decode", err)
	}
	if tick.Bid <= 0 {
		return decimal.Zero, false, nil
	}

	return decimal.NewFromFloat(tick.Bid), true, nil
}

// Disconnect releases the client. The bridge keeps its own session.
func (c *Client) Disconnect() {
	c.httpClient.CloseIdleConnections()
}
