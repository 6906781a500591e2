package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"market_voice/internal/broker"
	"market_voice/internal/domain"
	"market_voice/internal/infra"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Speaker and dashboard clients run on other origins
	},
}

// Enqueuer is the speech queue as seen by ingress handlers.
type Enqueuer interface {
	Enqueue(msg domain.QueuedMessage)
}

// speechPaths is the route allow-list for speaker connections;
// everything else is rejected at the handshake.
var speechPaths = map[string]bool{
	"/":              true,
	"/direct-speech": true,
	"/direct":        true,
}

// SpeechServer accepts speaker websocket clients and is the ingress for
// externally submitted text events: any inbound {"type":"chat"} object
// is normalized and enqueued, all other shapes are silently ignored.
type SpeechServer struct {
	broker *broker.Broker
	queue  Enqueuer
	mux    *http.ServeMux
	server *http.Server
}

// NewSpeechServer creates the speaker-facing listener on addr.
func NewSpeechServer(addr string, b *broker.Broker, queue Enqueuer) *SpeechServer {
	s := &SpeechServer{
		broker: b,
		queue:  queue,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/", s.handleWS)
	s.server = &http.Server{Addr: addr, Handler: s.mux}
	return s
}

// Handler exposes the route table (used by tests).
func (s *SpeechServer) Handler() http.Handler {
	return s.mux
}

// Start begins serving in a background goroutine.
func (s *SpeechServer) Start() {
	go func() {
		slog.Info("Speaker endpoint listening", slog.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Speaker endpoint failed", slog.Any("error", err))
		}
	}()
}

// Shutdown stops accepting new connections.
func (s *SpeechServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *SpeechServer) handleWS(w http.ResponseWriter, r *http.Request) {
	if !speechPaths[r.URL.Path] {
		http.NotFound(w, r)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Speaker upgrade failed", slog.Any("error", err))
		return
	}

	// Greeting goes out before registration, so it cannot interleave
	// with a worker broadcast on the same connection.
	greeting := domain.NewTextMessage("[happy] システム接続完了")
	if err := conn.WriteJSON(greeting.WirePayload()); err != nil {
		conn.Close()
		return
	}

	s.broker.Register(broker.RoleSpeaker, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.ingest(raw)
	}

	s.broker.Unregister(broker.RoleSpeaker, conn)
	conn.Close()
}

// ingest handles one inbound frame from a speaker connection. Malformed
// JSON and non-chat shapes are dropped without a response.
func (s *SpeechServer) ingest(raw []byte) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}

	kind, _ := payload["type"].(string)
	if kind != "chat" {
		return
	}
	text, _ := payload["text"].(string)

	delete(payload, "type")
	delete(payload, "text")

	slog.Info("📨 External event queued", slog.String("text", domain.Truncate(text, 20)))
	s.queue.Enqueue(domain.NewStructuredMessage("chat", text, payload))
	infra.GlobalMetrics.RecordEnqueue()
}
