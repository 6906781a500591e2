package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"market_voice/internal/domain"
	"market_voice/internal/infra"

	"github.com/shopspring/decimal"
)

// Enqueuer is the speech queue as seen by producers.
type Enqueuer interface {
	Enqueue(msg domain.QueuedMessage)
}

// DashboardSink receives unthrottled telemetry, bypassing the queue.
type DashboardSink interface {
	SendToDashboard(payload any)
}

// MonitorConfig carries the monitor's timing and phrasing settings.
type MonitorConfig struct {
	UpdateInterval  time.Duration
	RecoverInterval time.Duration
	SeverityMessage func(domain.Severity) string
}

// PriceMonitor is the tick ingress: it polls the price source on a
// fixed interval, runs each sample through the movement detector,
// enqueues spoken announcements for qualifying movements and pushes a
// telemetry snapshot to dashboards for every tick.
type PriceMonitor struct {
	mu       sync.Mutex
	source   domain.PriceSource
	detector *domain.Detector
	queue    Enqueuer
	sink     DashboardSink
	cfg      MonitorConfig
}

// NewPriceMonitor wires the monitor. The detector is owned by the
// monitor from here on: all Detect calls happen on the polling loop and
// Status reads are serialized against it.
func NewPriceMonitor(source domain.PriceSource, detector *domain.Detector, queue Enqueuer, sink DashboardSink, cfg MonitorConfig) *PriceMonitor {
	return &PriceMonitor{
		source:   source,
		detector: detector,
		queue:    queue,
		sink:     sink,
		cfg:      cfg,
	}
}

// Run is the polling loop. A polling error never terminates it: the
// loop logs, pauses for the recovery interval and resumes. Returns on
// context cancellation.
func (m *PriceMonitor) Run(ctx context.Context) {
	symbols := m.source.Symbols()
	slog.Info("✓ Price monitoring started", slog.Int("symbols", len(symbols)))

	m.queue.Enqueue(domain.NewTextMessage(
		fmt.Sprintf("%s 監視を開始しました。%d通貨ペアを見ています", domain.TagHappy, len(symbols))))
	infra.GlobalMetrics.RecordEnqueue()

	ticker := time.NewTicker(m.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Price monitoring stopped")
			return
		case <-ticker.C:
			if err := m.pollCycle(ctx, symbols); err != nil {
				slog.Error("Polling cycle failed", slog.Any("error", err))
				infra.GlobalMetrics.RecordPollFailure()
				select {
				case <-ctx.Done():
					return
				case <-time.After(m.cfg.RecoverInterval):
				}
			}
		}
	}
}

// pollCycle fetches one sample per symbol. The first poll error aborts
// the cycle; symbols without a fresh tick are skipped silently.
func (m *PriceMonitor) pollCycle(ctx context.Context, symbols []string) error {
	for _, symbol := range symbols {
		price, ok, err := m.source.Poll(ctx, symbol)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		m.HandleTick(symbol, price)
	}
	return nil
}

// HandleTick runs one price sample through detection and dispatches the
// results: a queued announcement on movement, a dashboard snapshot
// always (after the seeding sample).
func (m *PriceMonitor) HandleTick(symbol string, price decimal.Decimal) {
	m.mu.Lock()
	event, update := m.detector.Detect(symbol, price)
	m.mu.Unlock()

	infra.GlobalMetrics.RecordTick()

	if event != nil {
		text := FormatAnnouncement(event, m.cfg.SeverityMessage(event.Severity))
		slog.Info("★ Movement detected",
			slog.String("symbol", event.Symbol),
			slog.String("severity", string(event.Severity)),
			slog.String("pips", event.Pips.StringFixed(1)),
		)
		m.queue.Enqueue(domain.NewTextMessage(text))
		infra.GlobalMetrics.RecordMovement()
		infra.GlobalMetrics.RecordEnqueue()
	}

	if update != nil {
		m.sink.SendToDashboard(DashboardPayload(update))
	}
}

// Status returns the per-pair snapshot for the dashboard init payload.
func (m *PriceMonitor) Status() []domain.SymbolStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.Status()
}

// FormatAnnouncement renders the spoken line for a movement event:
// "<tag> <name> が <pips> pips <上昇|下降> した。<severity message>".
func FormatAnnouncement(ev *domain.MovementEvent, severityMsg string) string {
	direction := "下降"
	if ev.Direction == domain.DirectionUp {
		direction = "上昇"
	}
	return fmt.Sprintf("%s %s が %s pips %s した。%s",
		ev.EmotionTag, ev.JPName, ev.Pips.StringFixed(1), direction, severityMsg)
}

// DashboardPayload shapes one tick update for the dashboard channel.
func DashboardPayload(u *domain.TickUpdate) map[string]any {
	return map[string]any{
		"type":        "price_update",
		"symbol":      u.Symbol,
		"jp_name":     u.JPName,
		"price":       u.Price.InexactFloat64(),
		"base_price":  u.BasePrice.InexactFloat64(),
		"pips_change": u.Pips.InexactFloat64(),
	}
}
