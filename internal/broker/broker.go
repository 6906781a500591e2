package broker

import (
	"fmt"
	"log/slog"
	"sync"

	"market_voice/internal/domain"
	"market_voice/internal/infra"
)

// Conn is the writable side of one client connection. *websocket.Conn
// satisfies it; tests substitute fakes. Writes to a single Conn are
// never concurrent: speakers are written only by the speech worker and
// dashboards only by the monitor loop, both after registration.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Role selects which client registry a connection belongs to. A
// connection lives in exactly one registry for its whole lifetime.
type Role string

const (
	RoleSpeaker   Role = "speaker"
	RoleDashboard Role = "dashboard"
)

// Broker fans out messages to the two disjoint client registries. Each
// registry has its own mutex, so a stalled speaker write never delays a
// dashboard broadcast or vice versa.
type Broker struct {
	speakerMu   sync.Mutex
	speakers    map[Conn]struct{}
	dashboardMu sync.Mutex
	dashboards  map[Conn]struct{}
}

// New creates a broker with empty registries.
func New() *Broker {
	return &Broker{
		speakers:   make(map[Conn]struct{}),
		dashboards: make(map[Conn]struct{}),
	}
}

// Register adds a connection to the registry for role. Adding a
// connection that is already present is a no-op.
func (b *Broker) Register(role Role, c Conn) {
	switch role {
	case RoleDashboard:
		b.dashboardMu.Lock()
		defer b.dashboardMu.Unlock()
		b.dashboards[c] = struct{}{}
		infra.GlobalMetrics.SetDashboardClients(int32(len(b.dashboards)))
		slog.Info("✓ Dashboard client connected", slog.Int("total", len(b.dashboards)))
	default:
		b.speakerMu.Lock()
		defer b.speakerMu.Unlock()
		b.speakers[c] = struct{}{}
		infra.GlobalMetrics.SetSpeakerClients(int32(len(b.speakers)))
		slog.Info("✓ Speaker client connected", slog.Int("total", len(b.speakers)))
	}
}

// Unregister removes a connection from the registry for role. Safe to
// call for connections that were already pruned.
func (b *Broker) Unregister(role Role, c Conn) {
	switch role {
	case RoleDashboard:
		b.dashboardMu.Lock()
		defer b.dashboardMu.Unlock()
		b.removeDashboard(c)
	default:
		b.speakerMu.Lock()
		defer b.speakerMu.Unlock()
		b.removeSpeaker(c)
	}
}

// removeSpeaker must be called with speakerMu held.
func (b *Broker) removeSpeaker(c Conn) {
	delete(b.speakers, c)
	infra.GlobalMetrics.SetSpeakerClients(int32(len(b.speakers)))
}

// removeDashboard must be called with dashboardMu held.
func (b *Broker) removeDashboard(c Conn) {
	delete(b.dashboards, c)
	infra.GlobalMetrics.SetDashboardClients(int32(len(b.dashboards)))
}

// SendToSpeakers normalizes the message into the wire payload and
// delivers it to every registered speaker independently. Connections
// that fail are collected and pruned after the full pass, so one dead
// client never blocks delivery to the rest. No-op when the registry is
// empty; reports ErrConnectionClosed when every registered speaker
// failed, since the message was then never spoken anywhere.
func (b *Broker) SendToSpeakers(msg domain.QueuedMessage) error {
	b.speakerMu.Lock()
	defer b.speakerMu.Unlock()

	total := len(b.speakers)
	if total == 0 {
		return nil
	}

	payload := msg.WirePayload()

	var dead []Conn
	for c := range b.speakers {
		if err := c.WriteJSON(payload); err != nil {
			dead = append(dead, c)
			continue
		}
	}

	for _, c := range dead {
		b.removeSpeaker(c)
		c.Close()
		slog.Info("Pruned dead client", slog.String("role", string(RoleSpeaker)))
	}

	if len(dead) == total {
		return fmt.Errorf("%w: all %d speaker clients failed", domain.ErrConnectionClosed, total)
	}

	slog.Info("🎤 Speech delivered",
		slog.String("text", domain.Truncate(msg.Text, 50)),
		slog.Int("clients", total-len(dead)),
	)
	return nil
}

// SendToDashboard applies the same fan-out and pruning discipline to
// the dashboard registry. Called unthrottled from the producer path.
func (b *Broker) SendToDashboard(payload any) {
	b.dashboardMu.Lock()
	defer b.dashboardMu.Unlock()

	if len(b.dashboards) == 0 {
		return
	}

	var dead []Conn
	for c := range b.dashboards {
		if err := c.WriteJSON(payload); err != nil {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		b.removeDashboard(c)
		c.Close()
		slog.Info("Pruned dead client", slog.String("role", string(RoleDashboard)))
	}
}

// SpeakerCount returns the number of registered speaker clients.
func (b *Broker) SpeakerCount() int {
	b.speakerMu.Lock()
	defer b.speakerMu.Unlock()
	return len(b.speakers)
}

// DashboardCount returns the number of registered dashboard clients.
func (b *Broker) DashboardCount() int {
	b.dashboardMu.Lock()
	defer b.dashboardMu.Unlock()
	return len(b.dashboards)
}

// CloseAll force-closes every connection in both registries. Used at
// shutdown so the process does not wait on slow clients.
func (b *Broker) CloseAll() {
	b.speakerMu.Lock()
	for c := range b.speakers {
		c.Close()
		delete(b.speakers, c)
	}
	infra.GlobalMetrics.SetSpeakerClients(0)
	b.speakerMu.Unlock()

	b.dashboardMu.Lock()
	for c := range b.dashboards {
		c.Close()
		delete(b.dashboards, c)
	}
	infra.GlobalMetrics.SetDashboardClients(0)
	b.dashboardMu.Unlock()
}
