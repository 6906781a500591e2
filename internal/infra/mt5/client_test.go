package mt5

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"market_voice/internal/domain"

	"github.com/shopspring/decimal"
)

func newBridgeServer(t *testing.T, visible map[string]bool, ticks map[string]float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/select"):
			parts := strings.Split(r.URL.Path, "/")
			symbol := parts[len(parts)-2]
			vis, known := visible[symbol]
			if !known {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(symbolResponse{Name: symbol, Visible: vis, Digits: 3})
		case strings.HasPrefix(r.URL.Path, "/ticks/"):
			symbol := strings.TrimPrefix(r.URL.Path, "/ticks/")
			bid, ok := ticks[symbol]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(tickResponse{Symbol: symbol, Bid: bid, Ask: bid + 0.002})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestClient_ConnectSelectsAvailableSymbols(t *testing.T) {
	server := newBridgeServer(t,
		map[string]bool{"USDJPY": true, "EURUSD": true, "XXXYYY": false},
		nil,
	)
	defer server.Close()

	client := NewClient(server.URL, []string{"USDJPY", "EURUSD", "XXXYYY", "UNKNOWN"}, time.Second)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	got := client.Symbols()
	if len(got) != 2 || got[0] != "USDJPY" || got[1] != "EURUSD" {
		t.Errorf("Symbols = %v, want [USDJPY EURUSD]", got)
	}
}

func TestClient_ConnectFailsWhenNothingAvailable(t *testing.T) {
	server := newBridgeServer(t, map[string]bool{}, nil)
	defer server.Close()

	client := NewClient(server.URL, []string{"USDJPY"}, time.Second)
	err := client.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect should fail with no selectable symbols")
	}
	if !errors.Is(err, domain.ErrFeedUnavailable) {
		t.Errorf("expected ErrFeedUnavailable, got %v", err)
	}
}

func TestClient_Poll(t *testing.T) {
	server := newBridgeServer(t,
		map[string]bool{"USDJPY": true},
		map[string]float64{"USDJPY": 150.055},
	)
	defer server.Close()

	client := NewClient(server.URL, []string{"USDJPY"}, time.Second)

	t.Run("fresh tick", func(t *testing.T) {
		price, ok, err := client.Poll(context.Background(), "USDJPY")
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		if !ok {
			t.Fatal("expected a tick")
		}
		if !price.Equal(decimal.NewFromFloat(150.055)) {
			t.Errorf("price = %v, want 150.055", price)
		}
	})

	t.Run("absent tick is not an error", func(t *testing.T) {
		_, ok, err := client.Poll(context.Background(), "EURUSD")
		if err != nil {
			t.Fatalf("Poll failed: %v", err)
		}
		if ok {
			t.Error("expected no tick for unknown symbol")
		}
	})
}

func TestClient_PollErrorIsRetriable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, []string{"USDJPY"}, time.Second)
	_, _, err := client.Poll(context.Background(), "USDJPY")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !domain.IsRetriable(err) {
		t.Error("poll errors should be retriable")
	}
}
