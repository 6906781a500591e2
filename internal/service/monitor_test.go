package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"market_voice/internal/domain"

	"github.com/shopspring/decimal"
)

type fakeQueue struct {
	mu   sync.Mutex
	msgs []domain.QueuedMessage
}

func (q *fakeQueue) Enqueue(msg domain.QueuedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
}

func (q *fakeQueue) texts() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.msgs))
	for i, m := range q.msgs {
		out[i] = m.Text
	}
	return out
}

type fakeSink struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (s *fakeSink) SendToDashboard(payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := payload.(map[string]any); ok {
		s.payloads = append(s.payloads, m)
	}
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

type scriptedSource struct {
	mu      sync.Mutex
	symbols []string
	prices  map[string][]decimal.Decimal
	idx     map[string]int
	pollErr error
}

func (s *scriptedSource) Connect(ctx context.Context) error { return nil }
func (s *scriptedSource) Symbols() []string                 { return s.symbols }
func (s *scriptedSource) Disconnect()                       {}

func (s *scriptedSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollErr = err
}

func (s *scriptedSource) Poll(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollErr != nil {
		return decimal.Zero, false, s.pollErr
	}
	if s.idx == nil {
		s.idx = make(map[string]int)
	}
	seq := s.prices[symbol]
	i := s.idx[symbol]
	if i >= len(seq) {
		return decimal.Zero, false, nil
	}
	s.idx[symbol] = i + 1
	return seq[i], true, nil
}

func severityMessages(sev domain.Severity) string {
	switch sev {
	case domain.SeverityLarge:
		return "large!"
	case domain.SeverityMedium:
		return "medium!"
	default:
		return "small!"
	}
}

func newTestMonitor(source domain.PriceSource) (*PriceMonitor, *fakeQueue, *fakeSink) {
	specs := []domain.SymbolSpec{{Symbol: "USDJPY", Digits: 3, JPName: "どるえん"}}
	thresholds := domain.Thresholds{
		Small:  decimal.NewFromInt(5),
		Medium: decimal.NewFromInt(16),
		Large:  decimal.NewFromInt(30),
	}
	queue := &fakeQueue{}
	sink := &fakeSink{}
	monitor := NewPriceMonitor(source, domain.NewDetector(specs, thresholds), queue, sink, MonitorConfig{
		UpdateInterval:  5 * time.Millisecond,
		RecoverInterval: 5 * time.Millisecond,
		SeverityMessage: severityMessages,
	})
	return monitor, queue, sink
}

func TestHandleTick_MovementEnqueuesAnnouncement(t *testing.T) {
	monitor, queue, sink := newTestMonitor(&scriptedSource{symbols: []string{"USDJPY"}})

	monitor.HandleTick("USDJPY", decimal.RequireFromString("150.000"))
	monitor.HandleTick("USDJPY", decimal.RequireFromString("150.055"))

	texts := queue.texts()
	if len(texts) != 1 {
		t.Fatalf("expected 1 queued message, got %d: %v", len(texts), texts)
	}
	want := "[happy] どるえん が 5.5 pips 上昇 した。small!"
	if texts[0] != want {
		t.Errorf("announcement = %q, want %q", texts[0], want)
	}

	// Seeding tick produces no dashboard update, the second one does.
	if sink.count() != 1 {
		t.Errorf("dashboard updates = %d, want 1", sink.count())
	}
}

func TestHandleTick_DashboardUpdateWithoutMovement(t *testing.T) {
	monitor, queue, sink := newTestMonitor(&scriptedSource{symbols: []string{"USDJPY"}})

	monitor.HandleTick("USDJPY", decimal.RequireFromString("150.000"))
	monitor.HandleTick("USDJPY", decimal.RequireFromString("150.010"))

	if len(queue.texts()) != 0 {
		t.Errorf("sub-threshold tick must not enqueue: %v", queue.texts())
	}
	if sink.count() != 1 {
		t.Fatalf("dashboard updates = %d, want 1", sink.count())
	}

	payload := sink.payloads[0]
	if payload["type"] != "price_update" || payload["symbol"] != "USDJPY" {
		t.Errorf("payload shape wrong: %v", payload)
	}
	if payload["base_price"] != 150.0 || payload["pips_change"] != 1.0 {
		t.Errorf("payload values wrong: %v", payload)
	}
}

func TestRun_StartupAnnouncement(t *testing.T) {
	source := &scriptedSource{symbols: []string{"USDJPY"}}
	monitor, queue, _ := newTestMonitor(source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for len(queue.texts()) == 0 {
		select {
		case <-deadline:
			t.Fatal("startup announcement never enqueued")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	first := queue.texts()[0]
	if !strings.Contains(first, "監視を開始しました") || !strings.HasPrefix(first, "[happy]") {
		t.Errorf("unexpected startup announcement: %q", first)
	}
}

func TestRun_SurvivesPollError(t *testing.T) {
	source := &scriptedSource{
		symbols: []string{"USDJPY"},
		pollErr: errors.New("bridge down"),
	}
	monitor, _, _ := newTestMonitor(source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	// Let a few failing cycles elapse, then recover the source.
	time.Sleep(30 * time.Millisecond)
	source.setErr(nil)

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}

func TestStatus_NullableBeforeFirstTick(t *testing.T) {
	monitor, _, _ := newTestMonitor(&scriptedSource{symbols: []string{"USDJPY"}})

	status := monitor.Status()
	if len(status) != 1 {
		t.Fatalf("expected 1 status entry, got %d", len(status))
	}
	if status[0].Price != nil || status[0].BasePrice != nil {
		t.Error("prices must be nil before first tick")
	}

	monitor.HandleTick("USDJPY", decimal.RequireFromString("150.000"))
	status = monitor.Status()
	if status[0].Price == nil || status[0].BasePrice == nil {
		t.Error("prices must be set after first tick")
	}
}

func TestFormatAnnouncement_Down(t *testing.T) {
	ev := &domain.MovementEvent{
		JPName:     "ユーロドル",
		Pips:       decimal.NewFromInt(20),
		Direction:  domain.DirectionDown,
		Severity:   domain.SeverityMedium,
		EmotionTag: domain.TagNeutral,
	}
	got := FormatAnnouncement(ev, "medium!")
	want := "[neutral] ユーロドル が 20.0 pips 下降 した。medium!"
	if got != want {
		t.Errorf("FormatAnnouncement = %q, want %q", got, want)
	}
}
