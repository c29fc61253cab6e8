package web

import (
	"encoding/json"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan string) StatusEvent {
	t.Helper()
	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal %q: %v", msg, err)
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

	b.Broadcast("info", "rotate horizontal by 10° cw")

	evt := receive(t, ch)
	if evt.Msg != "rotate horizontal by 10° cw" || evt.Level != "info" {
		t.Errorf("event = %+v", evt)
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
		t.Fatalf("Clients() = %d, want 2", b.Clients())
	}
	b.Broadcast("error", "set vertical to 90° failed")

	for i, ch := range []<-chan string{ch1, ch2} {
		if evt := receive(t, ch); evt.Level != "error" {
			t.Errorf("subscriber %d: level = %q", i, evt.Level)
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()
	unsub()

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
	if b.Clients() != 0 {
		t.Errorf("Clients() = %d after unsubscribe", b.Clients())
	}
	// Broadcasting after unsubscribe must not panic.
	b.Broadcast("info", "after unsub")
}

func TestBroadcaster_FullChannelDropsMessage(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 64; i++ {
		b.Broadcast("info", "poll")
	}
	// Must not block: the slow client just misses it.
	b.Broadcast("info", "overflow")

	if len(ch) != 64 {
		t.Errorf("expected 64 buffered messages, got %d", len(ch))
	}
}

func TestBroadcaster_FixedClock(t *testing.T) {
	b := NewStatusBroadcaster()
	b.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	ch, unsub := b.Subscribe()
	defer unsub()

	b.BroadcastMsg("panel started")
	evt := receive(t, ch)
	if evt.Time != "2024-05-01T12:00:00Z" || evt.Level != "info" {
		t.Errorf("event = %+v", evt)
	}
}

// ---------- BroadcastWriter ----------

func TestBroadcastWriter_PlainLine(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	w := BroadcastWriter(b)
	n, err := w.Write([]byte("  12:00:00.000 INF panel: stopped  \n"))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != len("  12:00:00.000 INF panel: stopped  \n") {
		t.Errorf("n = %d", n)
	}
	if evt := receive(t, ch); evt.Msg != "12:00:00.000 INF panel: stopped" || evt.Level != "info" {
		t.Errorf("event = %+v", evt)
	}
}

func TestBroadcastWriter_ZerologJSON(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	line := `{"level":"warn","app":"turntable","seq":3,"class":"network","error":"connection refused","time":"2024-05-01T12:00:00Z","message":"poll failed"}` + "\n"
	BroadcastWriter(b).Write([]byte(line))

	evt := receive(t, ch)
	if evt.Level != "warn" || evt.Msg != "poll failed connection refused" || evt.Time != "2024-05-01T12:00:00Z" {
		t.Errorf("event = %+v", evt)
	}
}

func TestBroadcastWriter_SeveralLines(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	BroadcastWriter(b).Write([]byte("{\"level\":\"info\",\"message\":\"one\"}\n{\"level\":\"debug\",\"message\":\"two\"}\n"))
	if evt := receive(t, ch); evt.Msg != "one" {
		t.Errorf("first = %+v", evt)
	}
	if evt := receive(t, ch); evt.Msg != "two" || evt.Level != "debug" {
		t.Errorf("second = %+v", evt)
	}
}

func TestBroadcastWriter_EmptyWriteIgnored(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	BroadcastWriter(b).Write([]byte("   \n\n"))

	select {
	case <-ch:
		t.Error("expected no message for whitespace-only write")
	case <-time.After(50 * time.Millisecond):
	}
}
