package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func publish(t *testing.T, n Notifier, id string, stage Stage, pct int) {
	t.Helper()
	if err := n.Publish(context.Background(), Update{CorrelationID: id, Stage: stage, Progress: pct}); err != nil {
		t.Fatalf("Publish(%s) error = %v", stage, err)
	}
}

func drain(t *testing.T, ch <-chan Update) []Update {
	t.Helper()
	var out []Update
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, u)
		case <-timeout:
			t.Fatalf("subscription did not close; got %d updates", len(out))
			return nil
		}
	}
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name string
		prev Stage
		next Stage
		want error
	}{
		{"first update", "", StageInit, nil},
		{"forward", StageInit, StageMetadata, nil},
		{"same stage", StageAnalytics, StageAnalytics, nil},
		{"media siblings", StageTrackData, StageMedia, nil},
		{"regression", StageStore, StageMetadata, ErrStageRegression},
		{"error from init", StageInit, StageError, nil},
		{"error from store", StageStore, StageError, nil},
		{"after complete", StageComplete, StageStore, ErrTerminal},
		{"error after complete", StageComplete, StageError, ErrTerminal},
		{"complete after error", StageError, StageComplete, ErrTerminal},
		{"unknown", StageInit, Stage("BOGUS"), ErrUnknownStage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prev *Update
			if tt.prev != "" {
				prev = &Update{Stage: tt.prev}
			}
			err := checkTransition(prev, tt.next)
			if tt.want == nil && err != nil {
				t.Errorf("checkTransition() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("checkTransition() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHub_LatestAndClamp(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	if _, ok, _ := h.Latest(ctx, "abc"); ok {
		t.Fatal("Latest() found a snapshot before any publish")
	}

	publish(t, h, "abc", StageInit, -5)
	publish(t, h, "abc", StageMetadata, 250)

	u, ok, err := h.Latest(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("Latest() = %v, %v", ok, err)
	}
	if u.Stage != StageMetadata {
		t.Errorf("Stage = %s, want METADATA", u.Stage)
	}
	if u.Progress != 100 {
		t.Errorf("Progress = %d, want clamped 100", u.Progress)
	}
	if u.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
}

func TestHub_RejectsRegression(t *testing.T) {
	h := NewHub()
	publish(t, h, "abc", StageAnalytics, 50)

	err := h.Publish(context.Background(), Update{CorrelationID: "abc", Stage: StageMetadata})
	if !errors.Is(err, ErrStageRegression) {
		t.Fatalf("Publish() error = %v, want ErrStageRegression", err)
	}

	u, _, _ := h.Latest(context.Background(), "abc")
	if u.Stage != StageAnalytics {
		t.Errorf("rejected update replaced snapshot: %s", u.Stage)
	}
}

func TestHub_SubscribeStreamsUntilTerminal(t *testing.T) {
	h := NewHub()
	publish(t, h, "abc", StageInit, 0)

	ch, err := h.Subscribe(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}

	publish(t, h, "abc", StageMetadata, 25)
	publish(t, h, "abc", StageStore, 80)
	publish(t, h, "abc", StageComplete, 100)

	got := drain(t, ch)
	want := []Stage{StageInit, StageMetadata, StageStore, StageComplete}
	if len(got) != len(want) {
		t.Fatalf("got %d updates, want %d", len(got), len(want))
	}
	for i, s := range want {
		if got[i].Stage != s {
			t.Errorf("update %d = %s, want %s", i, got[i].Stage, s)
		}
	}

	if err := h.Publish(context.Background(), Update{CorrelationID: "abc", Stage: StageError}); !errors.Is(err, ErrTerminal) {
		t.Errorf("Publish after COMPLETE = %v, want ErrTerminal", err)
	}
}

func TestHub_SubscribeAfterTerminal(t *testing.T) {
	h := NewHub()
	publish(t, h, "abc", StageInit, 0)
	publish(t, h, "abc", StageError, 100)

	ch, err := h.Subscribe(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	got := drain(t, ch)
	if len(got) != 1 || got[0].Stage != StageError {
		t.Fatalf("got %+v, want a single ERROR snapshot", got)
	}
}

func TestHub_SubscribeCanceled(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := h.Subscribe(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	drain(t, ch)

	// Publishing after the subscriber left must not block or panic.
	publish(t, h, "abc", StageInit, 0)
}

func TestHub_SlowSubscriberKeepsLatest(t *testing.T) {
	h := NewHub()
	ch, err := h.Subscribe(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}

	publish(t, h, "abc", StageInit, 0)
	for i := 0; i < subscriberBuffer*2; i++ {
		publish(t, h, "abc", StageMetadata, i%100)
	}
	publish(t, h, "abc", StageComplete, 100)

	got := drain(t, ch)
	if len(got) > subscriberBuffer {
		t.Errorf("got %d updates, buffer is %d", len(got), subscriberBuffer)
	}
	if last := got[len(got)-1]; last.Stage != StageComplete {
		t.Errorf("last update = %s, want COMPLETE", last.Stage)
	}
}

func TestHub_Expiry(t *testing.T) {
	h := NewHub(WithExpiry(20 * time.Millisecond))
	publish(t, h, "abc", StageInit, 0)
	publish(t, h, "abc", StageComplete, 100)

	if _, ok, _ := h.Latest(context.Background(), "abc"); !ok {
		t.Fatal("terminal snapshot missing before expiry")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok, _ := h.Latest(context.Background(), "abc"); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("terminal snapshot never expired")
}

func TestHub_ResetAllowsRestart(t *testing.T) {
	h := NewHub()
	publish(t, h, "abc", StageInit, 0)
	publish(t, h, "abc", StageComplete, 100)

	if err := h.Reset(context.Background(), "abc"); err != nil {
		t.Fatal(err)
	}
	publish(t, h, "abc", StageInit, 0)

	u, ok, _ := h.Latest(context.Background(), "abc")
	if !ok || u.Stage != StageInit {
		t.Errorf("Latest() = %+v, %v; want INIT", u, ok)
	}
}

func TestHub_ConcurrentPublishers(t *testing.T) {
	h := NewHub()
	stages := []Stage{StageInit, StageMetadata, StageAnalytics, StageMedia, StageStore}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, s := range stages {
				// Regressions between racing publishers are expected and rejected.
				_ = h.Publish(context.Background(), Update{CorrelationID: "abc", Stage: s})
			}
		}()
	}
	wg.Wait()

	u, _, _ := h.Latest(context.Background(), "abc")
	if u.Stage != StageStore {
		t.Errorf("final stage = %s, want STORE", u.Stage)
	}
}
