package gateway

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/freightbot/internal/types"
)

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue(2)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var running int32
	var maxSeen int32

	queue.processor = func(run *Run) error {
		current := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&maxSeen)
			if current <= old || atomic.CompareAndSwapInt32(&maxSeen, old, current) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	}

	for i := 0; i < 5; i++ {
		run := &Run{
			ID:     types.NewRunID(),
			UserID: types.UserID(fmt.Sprintf("user-%d", i)),
			Status: RunStatusQueued,
		}
		if err := queue.Enqueue(run); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(500 * time.Millisecond)

	if m := atomic.LoadInt32(&maxSeen); m > 2 {
		t.Errorf("expected max 2 concurrent, saw %d", m)
	}
}

func TestQueueProcessorCalled(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var processed int32

	queue.SetProcessor(func(run *Run) error {
		atomic.AddInt32(&processed, 1)
		return nil
	})

	run := &Run{
		ID:     types.NewRunID(),
		UserID: types.UserID("test-user"),
		Status: RunStatusQueued,
	}
	if err := queue.Enqueue(run); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	if atomic.LoadInt32(&processed) != 1 {
		t.Errorf("expected 1 processed run, got %d", processed)
	}
}

func TestQueueSameUserOrdering(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var mu sync.Mutex
	var order []string
	var seqs []uint64
	done := make(chan struct{})

	queue.SetProcessor(func(run *Run) error {
		mu.Lock()
		order = append(order, run.Event.Text)
		seqs = append(seqs, run.Seq)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	})

	userID := types.UserID("same-user")
	for i := 0; i < 3; i++ {
		run := NewRun(&types.InboundEvent{UserID: userID, ChatID: 1, Kind: types.EventText, Text: strconv.Itoa(i)})
		if err := queue.Enqueue(run); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for runs to process")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != strconv.Itoa(i) {
			t.Errorf("expected order[%d] = %d, got %s", i, i, v)
		}
		if i > 0 && seqs[i] <= seqs[i-1] {
			t.Errorf("expected increasing seq, got %v", seqs)
		}
	}
}

func TestQueueNoProcessor(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	// Enqueue without setting a processor -- should not panic
	run := &Run{
		ID:     types.NewRunID(),
		UserID: types.UserID("no-proc"),
		Status: RunStatusQueued,
	}
	if err := queue.Enqueue(run); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
}

func TestQueueProcessorErrorRepliesToUser(t *testing.T) {
	queue := NewQueue(1)
	queue.Start(context.Background())
	defer queue.Stop()

	queue.SetProcessor(func(run *Run) error {
		return fmt.Errorf("boom")
	})

	replies := make(chan *types.OutboundMessage, 1)
	run := NewRun(&types.InboundEvent{UserID: "u1", ChatID: 99, Kind: types.EventText, Text: "hi"})
	run.OnComplete = func(msg *types.OutboundMessage) { replies <- msg }
	if err := queue.Enqueue(run); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-replies:
		if msg.ChatID != 99 || msg.Text == "" {
			t.Errorf("unexpected reply %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error reply")
	}
}

func TestQueueWaitIdleCoversQueuedRuns(t *testing.T) {
	queue := NewQueue(1)
	queue.Start(context.Background())
	defer queue.Stop()

	var processed atomic.Int32
	queue.SetProcessor(func(run *Run) error {
		time.Sleep(20 * time.Millisecond)
		processed.Add(1)
		return nil
	})

	for i := 0; i < 3; i++ {
		if err := queue.Enqueue(&Run{ID: types.NewRunID(), UserID: "same-user", Status: RunStatusQueued}); err != nil {
			t.Fatal(err)
		}
	}
	if !queue.WaitIdle(2 * time.Second) {
		t.Fatal("queue did not become idle")
	}
	if n := processed.Load(); n != 3 {
		t.Errorf("WaitIdle returned with %d of 3 runs processed", n)
	}
}

func TestQueueRunLifecycle(t *testing.T) {
	queue := NewQueue(1)
	queue.Start(context.Background())
	defer queue.Stop()

	errBoom := fmt.Errorf("boom")
	queue.SetProcessor(func(run *Run) error {
		if run.Status != RunStatusRunning || run.StartedAt.IsZero() {
			t.Errorf("expected running run with start time, got %s", run.Status)
		}
		if run.Event.Text == "fail" {
			return errBoom
		}
		return nil
	})

	ok := NewRun(&types.InboundEvent{UserID: "u1", ChatID: 1, Kind: types.EventText, Text: "ok"})
	failed := NewRun(&types.InboundEvent{UserID: "u1", ChatID: 1, Kind: types.EventText, Text: "fail"})
	for _, run := range []*Run{ok, failed} {
		if err := queue.Enqueue(run); err != nil {
			t.Fatal(err)
		}
	}
	if !queue.WaitIdle(2 * time.Second) {
		t.Fatal("queue did not drain")
	}

	if ok.Status != RunStatusComplete || ok.Error != nil {
		t.Errorf("expected complete run, got %s (%v)", ok.Status, ok.Error)
	}
	if ok.EndedAt.Before(ok.StartedAt) || ok.Waited() < 0 {
		t.Errorf("inconsistent timings: waited %v, started %v, ended %v", ok.Waited(), ok.StartedAt, ok.EndedAt)
	}
	if failed.Status != RunStatusFailed || failed.Error != errBoom {
		t.Errorf("expected failed run, got %s (%v)", failed.Status, failed.Error)
	}
	if failed.Seq <= ok.Seq {
		t.Errorf("expected seq to increase, got %d then %d", ok.Seq, failed.Seq)
	}
}
