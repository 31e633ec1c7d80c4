package web

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func recvEvent(t *testing.T, ch <-chan string) StatusEvent {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
	return StatusEvent{}
}

func TestBroadcaster_SubscribeAndReceive(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Broadcast("countdown", "SNAP IN 3")

	evt := recvEvent(t, ch)
	if evt.Msg != "SNAP IN 3" {
		t.Errorf("msg = %q, want \"SNAP IN 3\"", evt.Msg)
	}
	if evt.Level != "countdown" {
		t.Errorf("level = %q, want \"countdown\"", evt.Level)
	}
	if evt.Time == "" {
		t.Error("event should have a timestamp")
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewStatusBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	if b.Clients() != 2 {
		t.Errorf("Clients = %d, want 2", b.Clients())
	}
	b.Broadcast("state", "preview")

	for i, ch := range []<-chan string{ch1, ch2} {
		if evt := recvEvent(t, ch); evt.Msg != "preview" {
			t.Errorf("subscriber %d: msg = %q", i, evt.Msg)
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()
	unsub() // idempotent

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
	if b.Clients() != 0 {
		t.Errorf("Clients = %d, want 0", b.Clients())
	}
}

func TestBroadcaster_FullChannelDropsMessage(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 64; i++ {
		b.Broadcast("info", "fill")
	}
	// Must not block.
	b.Broadcast("info", "overflow")

	count := 0
	for {
		select {
		case <-ch:
			count++
			continue
		default:
		}
		break
	}
	if count != 64 {
		t.Errorf("expected 64 buffered messages, got %d", count)
	}
}

func TestBroadcaster_NewSubscriberGetsHistory(t *testing.T) {
	b := NewStatusBroadcaster()
	for i := 0; i < historySize+4; i++ {
		b.Broadcast("info", fmt.Sprintf("event %d", i))
	}

	ch, unsub := b.Subscribe()
	defer unsub()

	first := recvEvent(t, ch)
	if first.Msg != "event 4" {
		t.Errorf("first replayed event = %q, want the oldest kept one", first.Msg)
	}
	for i := 1; i < historySize; i++ {
		recvEvent(t, ch)
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected extra event %s", msg)
	default:
	}
}

func TestBroadcaster_CloseDisconnectsClients(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Close()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed by Close")
	}
	// Broadcasting and subscribing after Close must not panic.
	b.Broadcast("info", "late")
	late, lateUnsub := b.Subscribe()
	defer lateUnsub()
	for range late {
	}
}

func TestBroadcastWriter_SplitsLines(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	w := BroadcastWriter(b)
	in := "[photobooth] State idle -> preview\n  \n[photobooth] Countdown: 3\n"
	n, err := w.Write([]byte(in))
	if err != nil || n != len(in) {
		t.Fatalf("Write = %d, %v", n, err)
	}

	for _, want := range []string{"[photobooth] State idle -> preview", "[photobooth] Countdown: 3"} {
		evt := recvEvent(t, ch)
		if evt.Msg != want || evt.Level != "log" {
			t.Errorf("event = %+v, want log %q", evt, want)
		}
	}
	select {
	case <-ch:
		t.Error("whitespace-only line should be ignored")
	case <-time.After(50 * time.Millisecond):
	}
}
