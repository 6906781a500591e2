package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"market_voice/internal/domain"
	"market_voice/internal/infra"
)

// WebServer is the plain-HTTP side of the dashboard: cached pair icons,
// a metrics snapshot, and a webhook for external announcement producers
// (news scripts) that prefer HTTP over a websocket session. Webhook
// submissions share the speech queue, so they never overlap with
// price-driven messages.
type WebServer struct {
	queue  Enqueuer
	mux    *http.ServeMux
	server *http.Server
}

// NewWebServer creates the HTTP listener on addr. iconDir is the icon
// cache populated by the downloader; empty disables the route.
func NewWebServer(addr, iconDir string, queue Enqueuer) *WebServer {
	s := &WebServer{
		queue: queue,
		mux:   http.NewServeMux(),
	}
	if iconDir != "" {
		s.mux.Handle("/icons/", http.StripPrefix("/icons/", http.FileServer(http.Dir(iconDir))))
	}
	s.mux.HandleFunc("/announce", s.handleAnnounce)
	s.mux.HandleFunc("/metrics", s.handleMetrics)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.server = &http.Server{Addr: addr, Handler: s.mux}
	return s
}

// Handler exposes the route table (used by tests).
func (s *WebServer) Handler() http.Handler {
	return s.mux
}

// Start begins serving in a background goroutine.
func (s *WebServer) Start() {
	go func() {
		slog.Info("Web endpoint listening", slog.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Web endpoint failed", slog.Any("error", err))
		}
	}()
}

// Shutdown stops accepting new connections.
func (s *WebServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleAnnounce accepts POST {"text": "...", ...} and enqueues it as a
// chat message. Extra fields pass through to the wire payload.
func (s *WebServer) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	text, _ := payload["text"].(string)
	if text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if kind, ok := payload["type"].(string); ok && kind != "chat" {
		http.Error(w, "unsupported event type", http.StatusUnprocessableEntity)
		return
	}

	delete(payload, "type")
	delete(payload, "text")

	slog.Info("📨 Webhook event queued", slog.String("text", domain.Truncate(text, 20)))
	s.queue.Enqueue(domain.NewStructuredMessage("chat", text, payload))
	infra.GlobalMetrics.RecordEnqueue()

	w.WriteHeader(http.StatusAccepted)
}

// handleMetrics serves the current metrics snapshot as JSON.
func (s *WebServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infra.GlobalMetrics.Snapshot())
}

func (s *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
