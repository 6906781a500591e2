package engine

import (
	"context"
	"log/slog"
	"time"

	"market_voice/internal/domain"
	"market_voice/internal/infra"
)

// SpeakerSender delivers one message to every registered speaker client.
type SpeakerSender interface {
	SendToSpeakers(msg domain.QueuedMessage) error
}

// SpeechWorker is the sole consumer of the speech queue. It delivers one
// message at a time and then waits a fixed cooldown so spoken output
// never overlaps, regardless of how many producers are enqueueing.
type SpeechWorker struct {
	queue    *SpeechQueue
	sender   SpeakerSender
	cooldown time.Duration
}

// NewSpeechWorker creates a worker draining queue into sender.
func NewSpeechWorker(queue *SpeechQueue, sender SpeakerSender, cooldown time.Duration) *SpeechWorker {
	return &SpeechWorker{
		queue:    queue,
		sender:   sender,
		cooldown: cooldown,
	}
}

// Run is the worker loop. It MUST run in a single goroutine and returns
// when the queue is closed and drained, or the context is cancelled
// during a cooldown. A failed send never stops the loop and the cooldown
// elapses regardless; messages are never retried or requeued.
func (w *SpeechWorker) Run(ctx context.Context) {
	slog.Info("🗣️ Speech worker started", slog.Duration("cooldown", w.cooldown))

	for {
		msg, ok := w.queue.Dequeue()
		if !ok {
			slog.Info("Speech worker stopping: queue closed")
			return
		}

		if err := w.sender.SendToSpeakers(msg); err != nil {
			slog.Error("Speech delivery failed", slog.Any("error", err))
			infra.GlobalMetrics.RecordSendFailure()
		} else {
			infra.GlobalMetrics.RecordMessageSpoken()
		}
		infra.GlobalMetrics.SetQueueDepth(int32(w.queue.Len()))

		select {
		case <-ctx.Done():
			slog.Info("Speech worker stopping: context cancelled")
			return
		case <-time.After(w.cooldown):
		}
	}
}
