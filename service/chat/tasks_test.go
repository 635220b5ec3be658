package chat

import (
	"sync"
	"testing"
	"time"
)

func TestTaskQueueRunsInOrder(t *testing.T) {
	q := NewTaskQueue(16)
	var mu sync.Mutex
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		q.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	q.Close()
	for i, v := range got {
		if v != i {
			t.Fatalf("order broken: %v", got)
		}
	}
	if len(got) != 10 {
		t.Fatalf("ran %d tasks, want 10", len(got))
	}
}

func TestTaskQueueCloseDrains(t *testing.T) {
	q := NewTaskQueue(16)
	done := make(chan struct{})
	q.Submit(func() { time.Sleep(20 * time.Millisecond) })
	q.Submit(func() { close(done) })
	q.Close()
	select {
	case <-done:
	default:
		t.Fatalf("queued task dropped on close")
	}
}

func TestTaskQueueRecoversFromPanic(t *testing.T) {
	q := NewTaskQueue(16)
	ran := make(chan struct{})
	q.Submit(func() { panic("boom") })
	q.Submit(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("queue died after panic")
	}
	q.Close()
}

func TestSubmitAfter(t *testing.T) {
	q := NewTaskQueue(16)
	defer q.Close()
	ran := make(chan struct{})
	q.SubmitAfter(10*time.Millisecond, func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("delayed task never ran")
	}
}
