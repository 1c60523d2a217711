package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatvault/pkg/chat"
	"chatvault/pkg/domain"
)

type fakeSender struct {
	chat.Client
	sent   []string
	failOn map[string]bool
}

func (f *fakeSender) SendText(ctx context.Context, ref domain.ChatRef, text string) error {
	if f.failOn[ref.String()] {
		return errors.New("peer flood")
	}
	f.sent = append(f.sent, ref.String())
	return nil
}

func TestSendCountsAndOrder(t *testing.T) {
	client := &fakeSender{failOn: map[string]bool{"bob": true}}
	var waits []time.Duration
	d := &Dispatcher{
		DelayMin: 2 * time.Second,
		DelayMax: 5 * time.Second,
		Sleep: func(ctx context.Context, delay time.Duration) error {
			waits = append(waits, delay)
			return nil
		},
	}
	targets := []string{"alice", "bob", "42", "carol", "-100999"}
	res, err := d.Send(context.Background(), client, targets, "hello", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Sent != 4 || res.Failed != 1 || res.Total != 5 {
		t.Fatalf("result = %+v, want sent=4 failed=1 total=5", res)
	}
	if res.Sent+res.Failed != res.Total {
		t.Fatalf("sent+failed = %d, want total %d", res.Sent+res.Failed, res.Total)
	}
	want := []string{"alice", "42", "carol", "-100999"}
	for i, w := range want {
		if client.sent[i] != w {
			t.Fatalf("sent order = %v, want %v", client.sent, want)
		}
	}
	// One pause between each consecutive pair, none after the last send.
	if len(waits) != 4 {
		t.Fatalf("got %d pauses for 5 targets, want 4", len(waits))
	}
	for _, w := range waits {
		if w < 2*time.Second || w > 5*time.Second {
			t.Fatalf("pause %v outside [2s, 5s]", w)
		}
	}
}

func TestSendSingleTargetNoPause(t *testing.T) {
	client := &fakeSender{}
	paused := false
	d := &Dispatcher{DelayMin: time.Second, DelayMax: time.Second, Sleep: func(context.Context, time.Duration) error {
		paused = true
		return nil
	}}
	if _, err := d.Send(context.Background(), client, []string{"alice"}, "hi", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if paused {
		t.Fatalf("paused after the only send")
	}
}

func TestSendCancelledBetweenTargets(t *testing.T) {
	client := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{Sleep: func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}}
	res, err := d.Send(ctx, client, []string{"a", "b", "c"}, "hi", nil)
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Sent != 1 {
		t.Fatalf("sent = %d, want 1 before cancellation", res.Sent)
	}
}

func TestSendReportsProgress(t *testing.T) {
	client := &fakeSender{}
	d := &Dispatcher{Sleep: func(context.Context, time.Duration) error { return nil }}
	var ticks []int
	if _, err := d.Send(context.Background(), client, []string{"a", "b", "c"}, "hi", func(done, total int) {
		if total != 3 {
			t.Fatalf("total = %d, want 3", total)
		}
		ticks = append(ticks, done)
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(ticks) != 3 || ticks[2] != 3 {
		t.Fatalf("ticks = %v, want [1 2 3]", ticks)
	}
}
