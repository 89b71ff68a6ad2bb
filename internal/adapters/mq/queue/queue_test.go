package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/truthfuse/internal/domain/model"
)

func activity(msg string) Item {
	return model.Notification{
		Kind:     model.KindActivity,
		Activity: &model.ActivityEntry{Message: msg, Level: model.LevelInfo},
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, activity("one")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	it := <-q.Dequeue(ctx)
	if it.Activity == nil || it.Activity.Message != "one" {
		t.Errorf("expected activity one, got %+v", it)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, activity("1")) || !q.Enqueue(ctx, activity("2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, activity("3")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, activity("late")) {
		t.Error("expected enqueue to fail with a cancelled context")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(64))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const producers, perProducer = 8, 100
	var consumed sync.WaitGroup
	consumed.Add(producers * perProducer)

	for i := 0; i < 4; i++ {
		go func() {
			for range q.Dequeue(ctx) {
				consumed.Done()
			}
		}()
	}

	var produced sync.WaitGroup
	for i := 0; i < producers; i++ {
		produced.Add(1)
		go func(id int) {
			defer produced.Done()
			for j := 0; j < perProducer; j++ {
				for !q.Enqueue(ctx, activity(fmt.Sprintf("%d-%d", id, j))) {
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}
	produced.Wait()

	done := make(chan struct{})
	go func() { consumed.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumers did not drain the queue")
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	q.Enqueue(ctx, activity("a"))
	q.Enqueue(ctx, activity("b"))

	if err := q.Close(); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, activity("c")) {
		t.Error("expected enqueue to fail after closing")
	}

	var drained []string
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for {
		select {
		case it, ok := <-ch:
			if !ok {
				if len(drained) != 2 {
					t.Errorf("expected both queued items to drain, got %v", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got %v", err)
				}
				return
			}
			drained = append(drained, it.Activity.Message)
		case <-timeout:
			t.Fatal("expected dequeue channel to close after draining")
		}
	}
}
