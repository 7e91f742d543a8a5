package events_test

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"shelver/internal/events"
)

func TestHubTailKeepsMostRecent(t *testing.T) {
	hub := events.NewHub(3)
	for i := range 5 {
		hub.Notify(fmt.Sprintf("notice %d", i))
	}
	notices, last := hub.Tail(10)
	if last != 5 {
		t.Fatalf("expected last sequence 5, got %d", last)
	}
	var got []string
	for _, n := range notices {
		got = append(got, n.Message)
	}
	if !slices.Equal(got, []string{"notice 2", "notice 3", "notice 4"}) {
		t.Fatalf("unexpected tail %v", got)
	}
}

func TestHubFetchSinceAndLimit(t *testing.T) {
	hub := events.NewHub(10)
	for i := range 4 {
		hub.Notify(fmt.Sprintf("n%d", i))
	}
	notices, next, err := hub.Fetch(context.Background(), 1, 2, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(notices) != 2 || notices[0].Sequence != 2 || next != 3 {
		t.Fatalf("unexpected fetch result %+v next=%d", notices, next)
	}
	notices, next, _ = hub.Fetch(context.Background(), next, 0, false)
	if len(notices) != 1 || notices[0].Message != "n3" || next != 4 {
		t.Fatalf("unexpected second fetch %+v next=%d", notices, next)
	}
	if notices, _, _ := hub.Fetch(context.Background(), 4, 0, false); len(notices) != 0 {
		t.Fatalf("expected nothing new, got %+v", notices)
	}
}

func TestHubFetchWaitsForNotice(t *testing.T) {
	hub := events.NewHub(4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan []events.Notice, 1)
	go func() {
		notices, _, _ := hub.Fetch(ctx, 0, 0, true)
		done <- notices
	}()
	time.Sleep(20 * time.Millisecond)
	hub.Notify("moved a.jpg")

	select {
	case notices := <-done:
		if len(notices) != 1 || notices[0].Message != "moved a.jpg" {
			t.Fatalf("unexpected notices %+v", notices)
		}
	case <-ctx.Done():
		t.Fatal("Fetch did not wake up")
	}
}

func TestHubFetchHonoursCancellation(t *testing.T) {
	hub := events.NewHub(4)
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, _, err := hub.Fetch(ctx, 0, 0, true)
		errs <- err
	}()
	cancel()
	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch ignored cancellation")
	}
}

func TestMultiFansOut(t *testing.T) {
	var a, b events.Recorder
	var mu sync.Mutex
	var fn []string
	sink := events.Multi(&a, nil, &b, events.SinkFunc(func(m string) {
		mu.Lock()
		fn = append(fn, m)
		mu.Unlock()
	}))
	sink.Notify("one")
	sink.Notify("two")

	for _, got := range [][]string{a.Messages(), b.Messages(), fn} {
		if !slices.Equal(got, []string{"one", "two"}) {
			t.Fatalf("unexpected fan-out %v", got)
		}
	}
}

func TestRecorderConcurrentNotify(t *testing.T) {
	var rec events.Recorder
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() { rec.Notify(fmt.Sprint(i)) })
	}
	wg.Wait()
	if rec.Len() != 50 {
		t.Fatalf("expected 50 notices, got %d", rec.Len())
	}
}

func TestOrDiscard(t *testing.T) {
	events.OrDiscard(nil).Notify("dropped")
	var rec events.Recorder
	events.OrDiscard(&rec).Notify("kept")
	if rec.Len() != 1 {
		t.Fatal("expected recorder to be used")
	}
}
