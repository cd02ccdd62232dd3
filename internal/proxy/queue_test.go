package proxy

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMessageQueue_DeliversInOrder(t *testing.T) {
	t.Parallel()

	var got []MessageType
	q := NewMessageQueue(QueueConfig{
		Capacity:  8,
		OnMessage: func(m Message) { got = append(got, m.Type) },
	})

	q.BlockingWrite(Message{Type: MessageRequest})
	q.BlockingWrite(Message{Type: MessageOldConfig})
	q.BlockingWrite(Message{Type: MessageShutdown})

	if n := q.ConsumeAll(); n != 3 {
		t.Fatalf("ConsumeAll = %d, want 3", n)
	}
	want := []MessageType{MessageRequest, MessageOldConfig, MessageShutdown}
	for i, ty := range want {
		if got[i] != ty {
			t.Fatalf("message %d = %v, want %v", i, got[i], ty)
		}
	}
}

func TestMessageQueue_BlockingWriteRespectsCapacity(t *testing.T) {
	t.Parallel()

	q := NewMessageQueue(QueueConfig{
		Capacity:  2,
		OnMessage: func(Message) {},
	})

	q.BlockingWrite(Message{Type: MessageShutdown})
	q.BlockingWrite(Message{Type: MessageShutdown})

	unblocked := make(chan struct{})
	go func() {
		q.BlockingWrite(Message{Type: MessageShutdown})
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("third write completed on a full queue")
	case <-time.After(20 * time.Millisecond):
	}

	// Consuming frees capacity; the blocked producer must finish.
	q.ConsumeAll()
	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("blocked write never completed after drain")
	}
}

func TestMessageQueue_ManyProducersSingleConsumer(t *testing.T) {
	t.Parallel()

	const producers = 4
	const perProducer = 100

	var consumed atomic.Int64
	q := NewMessageQueue(QueueConfig{
		Capacity:  16,
		OnMessage: func(Message) { consumed.Add(1) },
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for consumed.Load() < producers*perProducer {
			select {
			case <-q.WakeC():
			case <-time.After(time.Millisecond):
			}
			q.ConsumeAll()
		}
	}()

	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				q.BlockingWrite(Message{Type: MessageShutdown})
			}
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer never drained all messages")
	}
	if consumed.Load() != producers*perProducer {
		t.Fatalf("consumed %d messages, want %d", consumed.Load(), producers*perProducer)
	}
}

func TestMessageQueue_NotificationSuppression(t *testing.T) {
	t.Parallel()

	var notifies atomic.Int64
	q := NewMessageQueue(QueueConfig{
		Capacity:     64,
		OnMessage:    func(Message) {},
		NoNotifyRate: 4,
		OnNotify:     func() { notifies.Add(1) },
	})

	// The period starts at 1, so a big drained batch doubles it.
	for range 8 {
		q.BlockingWrite(Message{Type: MessageShutdown})
	}
	q.ConsumeAll()
	if p := q.CurrentNotifyPeriod(); p != 2 {
		t.Fatalf("notify period after large drain = %d, want 2", p)
	}

	// With period 2, the first write is suppressed and the second notifies.
	before := notifies.Load()
	q.BlockingWrite(Message{Type: MessageShutdown})
	q.BlockingWrite(Message{Type: MessageShutdown})
	if got := notifies.Load() - before; got != 1 {
		t.Fatalf("notifications for two writes at period 2 = %d, want 1", got)
	}
	if q.SuppressedNotifications() == 0 {
		t.Fatal("suppressed notification was not counted")
	}
	q.ConsumeAll()
}

func TestMessageQueue_WaitThresholdForcesNotify(t *testing.T) {
	t.Parallel()

	var clock atomic.Int64
	var notifies atomic.Int64
	q := NewMessageQueue(QueueConfig{
		Capacity:        64,
		OnMessage:       func(Message) {},
		NoNotifyRate:    8,
		WaitThresholdUs: 50,
		Now:             clock.Load,
		OnNotify:        func() { notifies.Add(1) },
	})

	// Grow the period past 1 so suppression is active.
	for range 8 {
		q.BlockingWrite(Message{Type: MessageShutdown})
	}
	q.ConsumeAll()
	if q.CurrentNotifyPeriod() <= 1 {
		t.Fatal("expected suppression to be active")
	}

	// One fresh write is suppressed.
	before := notifies.Load()
	q.BlockingWrite(Message{Type: MessageShutdown})
	if notifies.Load() != before {
		t.Fatal("expected the first write to be suppressed")
	}

	// Once the buffered message overstays the threshold, the next write
	// must notify regardless of the period.
	clock.Add(100)
	q.BlockingWrite(Message{Type: MessageShutdown})
	if notifies.Load() != before+1 {
		t.Fatal("expected a forced notification after the wait threshold")
	}
	q.ConsumeAll()

	// Falling behind resets the period to per-write notifications.
	if p := q.CurrentNotifyPeriod(); p != 1 {
		t.Fatalf("notify period after lag = %d, want 1", p)
	}
}

func TestMessageQueue_DrainHookLastFlag(t *testing.T) {
	t.Parallel()

	var lasts []bool
	q := NewMessageQueue(QueueConfig{
		Capacity:  8,
		OnMessage: func(Message) {},
		DrainHook: func(last bool) bool {
			lasts = append(lasts, last)
			return false
		},
	})

	q.BlockingWrite(Message{Type: MessageShutdown})
	q.BlockingWrite(Message{Type: MessageShutdown})
	q.ConsumeAll()

	if len(lasts) == 0 || !lasts[len(lasts)-1] {
		t.Fatalf("drain boundary hook calls = %v, want final call with last=true", lasts)
	}
}

func TestMessageQueue_WriteAfterTeardownPanics(t *testing.T) {
	t.Parallel()

	q := NewMessageQueue(QueueConfig{
		Capacity:  4,
		OnMessage: func(Message) {},
	})
	q.BlockingWrite(Message{Type: MessageShutdown})
	q.Teardown()

	if q.Len() != 0 {
		t.Fatalf("Len after teardown = %d, want 0", q.Len())
	}

	defer func() {
		if recover() == nil {
			t.Fatal("BlockingWrite after teardown did not panic")
		}
	}()
	q.BlockingWrite(Message{Type: MessageShutdown})
}
