package engine

import (
	"fmt"
	"sync"
	"testing"

	"market_voice/internal/domain"
)

func TestSpeechQueue_FIFO(t *testing.T) {
	q := NewSpeechQueue()
	q.Enqueue(domain.NewTextMessage("A"))
	q.Enqueue(domain.NewTextMessage("B"))
	q.Enqueue(domain.NewTextMessage("C"))

	for _, want := range []string{"A", "B", "C"} {
		msg, ok := q.Dequeue()
		if !ok {
			t.Fatal("queue unexpectedly closed")
		}
		if msg.Text != want {
			t.Errorf("dequeued %q, want %q", msg.Text, want)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}

func TestSpeechQueue_BlocksUntilEnqueue(t *testing.T) {
	q := NewSpeechQueue()

	done := make(chan domain.QueuedMessage, 1)
	go func() {
		msg, _ := q.Dequeue()
		done <- msg
	}()

	q.Enqueue(domain.NewTextMessage("wake"))

	msg := <-done
	if msg.Text != "wake" {
		t.Errorf("got %q, want %q", msg.Text, "wake")
	}
}

func TestSpeechQueue_ConcurrentProducersPreservePerProducerOrder(t *testing.T) {
	q := NewSpeechQueue()

	const producers = 4
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(domain.NewTextMessage(fmt.Sprintf("%d-%d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	lastSeen := make(map[string]int)
	for i := 0; i < producers*perProducer; i++ {
		msg, ok := q.Dequeue()
		if !ok {
			t.Fatal("queue closed early")
		}
		var p, seq int
		fmt.Sscanf(msg.Text, "%d-%d", &p, &seq)
		key := fmt.Sprintf("p%d", p)
		if last, seen := lastSeen[key]; seen && seq != last+1 {
			t.Fatalf("producer %d reordered: %d after %d", p, seq, last)
		}
		lastSeen[key] = seq
	}
}

func TestSpeechQueue_CloseUnblocksAndDrains(t *testing.T) {
	q := NewSpeechQueue()
	q.Enqueue(domain.NewTextMessage("pending"))
	q.Close()

	// Remaining message is still delivered after close.
	msg, ok := q.Dequeue()
	if !ok || msg.Text != "pending" {
		t.Fatalf("expected pending message, got (%q, %v)", msg.Text, ok)
	}

	// Drained and closed: Dequeue reports done instead of blocking.
	if _, ok := q.Dequeue(); ok {
		t.Error("Dequeue should report closed after drain")
	}

	// Enqueue after close is dropped.
	q.Enqueue(domain.NewTextMessage("late"))
	if q.Len() != 0 {
		t.Error("enqueue after close must be dropped")
	}
}
