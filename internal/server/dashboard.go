package server

import (
	"context"
	"log/slog"
	"net/http"

	"market_voice/internal/broker"
	"market_voice/internal/domain"
)

// StatusProvider supplies the per-pair snapshot for the init payload.
type StatusProvider interface {
	Status() []domain.SymbolStatus
}

// DashboardServer accepts dashboard websocket clients. The channel is
// read-only from the client's perspective: inbound frames are drained
// and ignored. On connect the client receives an init payload with a
// config subset and the current per-pair status.
type DashboardServer struct {
	broker     *broker.Broker
	status     StatusProvider
	initConfig map[string]any
	mux        *http.ServeMux
	server     *http.Server
}

// NewDashboardServer creates the dashboard-facing listener on addr.
func NewDashboardServer(addr string, b *broker.Broker, status StatusProvider, initConfig map[string]any) *DashboardServer {
	s := &DashboardServer{
		broker:     b,
		status:     status,
		initConfig: initConfig,
		mux:        http.NewServeMux(),
	}
	s.mux.HandleFunc("/", s.handleWS)
	s.server = &http.Server{Addr: addr, Handler: s.mux}
	return s
}

// Handler exposes the route table (used by tests).
func (s *DashboardServer) Handler() http.Handler {
	return s.mux
}

// Start begins serving in a background goroutine.
func (s *DashboardServer) Start() {
	go func() {
		slog.Info("Dashboard endpoint listening", slog.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Dashboard endpoint failed", slog.Any("error", err))
		}
	}()
}

// Shutdown stops accepting new connections.
func (s *DashboardServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *DashboardServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Dashboard upgrade failed", slog.Any("error", err))
		return
	}

	init := map[string]any{
		"type":   "init",
		"config": s.initConfig,
		"status": statusPayload(s.status.Status()),
	}
	if err := conn.WriteJSON(init); err != nil {
		conn.Close()
		return
	}

	s.broker.Register(broker.RoleDashboard, conn)

	// Drain inbound frames until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.broker.Unregister(broker.RoleDashboard, conn)
	conn.Close()
}

// statusPayload renders status entries with plain JSON numbers; pairs
// without a tick yet report null prices.
func statusPayload(entries []domain.SymbolStatus) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		entry := map[string]any{
			"symbol":     e.Symbol,
			"jp_name":    e.JPName,
			"price":      nil,
			"base_price": nil,
		}
		if e.Price != nil {
			entry["price"] = e.Price.InexactFloat64()
		}
		if e.BasePrice != nil {
			entry["base_price"] = e.BasePrice.InexactFloat64()
		}
		out = append(out, entry)
	}
	return out
}
