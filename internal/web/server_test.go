package web

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/turntable/internal/hw/turntable"
	"github.com/cjeanneret/turntable/internal/metrics"
	"github.com/cjeanneret/turntable/internal/panel"
	"github.com/cjeanneret/turntable/internal/simulator"
)

func newTestServer(t *testing.T, rec *metrics.Recorder) (*httptest.Server, *panel.Panel, *simulator.Simulator) {
	t.Helper()
	sim := simulator.New(simulator.WithAngles(turntable.Reading{Horizontal: 45, Vertical: 90}))
	ctrl := httptest.NewServer(sim.Handler())
	t.Cleanup(ctrl.Close)

	p := panel.New(turntable.NewClient(ctrl.URL), panel.Config{Interval: time.Hour, Metrics: rec})
	t.Cleanup(p.Close)

	var opts []ServerOption
	if rec != nil {
		opts = append(opts, WithMetrics(rec, "/metrics"))
	}
	s, err := NewServer("127.0.0.1:0", p, NewStatusBroadcaster(), FormConfig{Variant: "dial"}, opts...)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(s.Mux())
	t.Cleanup(ts.Close)
	return ts, p, sim
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

// ---------- Routes ----------

func TestServer_Routes(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	cases := []struct {
		path        string
		status      int
		contentType string
		contains    string
	}{
		{"/", http.StatusOK, "text/html", "/api/dial/horizontal.svg"},
		{"/static/app.js", http.StatusOK, "javascript", "WebSocket"},
		{"/static/style.css", http.StatusOK, "text/css", "background: black"},
		{"/config", http.StatusOK, "application/json", `"variant":"dial"`},
		{"/api/state", http.StatusOK, "application/json", `"state":"idle"`},
		{"/api/dial/vertical.svg", http.StatusOK, "image/svg+xml", "<svg"},
		{"/api/dial/roll.svg", http.StatusNotFound, "application/json", "ERR_AXIS"},
		{"/metrics", http.StatusNotFound, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			resp, body := get(t, ts.URL+tc.path)
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
			if !strings.Contains(resp.Header.Get("Content-Type"), tc.contentType) {
				t.Errorf("Content-Type = %q, want %q", resp.Header.Get("Content-Type"), tc.contentType)
			}
			if !strings.Contains(body, tc.contains) {
				t.Errorf("body does not contain %q", tc.contains)
			}
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	resp, _ := get(t, ts.URL+"/api/apply")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/apply status = %d, want 405", resp.StatusCode)
	}
}

func TestServer_ApplyThenRefresh(t *testing.T) {
	ts, p, sim := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/apply", "application/json",
		strings.NewReader(`{"horizontal":{"rotate_amount":15,"direction":"ccw"}}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("apply status = %d", resp.StatusCode)
	}
	if got := sim.Angles().Horizontal; got != 30 {
		t.Fatalf("controller horizontal = %v, want 30", got)
	}

	resp, err = http.Post(ts.URL+"/api/refresh", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := p.Snapshot().Angles.Horizontal; got != 30 {
		t.Errorf("displayed horizontal = %v, want 30", got)
	}
}

func TestServer_Metrics(t *testing.T) {
	ts, p, _ := newTestServer(t, metrics.New())
	_ = p.Poll(context.Background())
	get(t, ts.URL+"/api/state")
	get(t, ts.URL+"/api/dial/horizontal.svg")

	_, body := get(t, ts.URL+"/metrics")
	for _, want := range []string{
		`turntable_http_requests_total{method="GET",route="/api/state",status="200"} 1`,
		`turntable_http_requests_total{method="GET",route="/api/dial/{axis}.svg",status="200"} 1`,
		`turntable_polls_total{result="success"} 1`,
		`turntable_angle_degrees{axis="vertical"} 90`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

// ---------- Websocket ----------

func TestServer_WebsocketPushesSnapshots(t *testing.T) {
	ts, p, _ := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var s panel.Snapshot
	if err := conn.ReadJSON(&s); err != nil {
		t.Fatalf("initial snapshot: %v", err)
	}
	if s.Seq != 0 || s.Angles != (turntable.Reading{}) {
		t.Errorf("initial snapshot = %+v", s)
	}

	if err := p.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if err := conn.ReadJSON(&s); err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.Seq != 1 || s.Angles != (turntable.Reading{Horizontal: 45, Vertical: 90}) {
		t.Errorf("update = %+v", s)
	}

	// The page can ask for a refresh over the socket.
	if err := conn.WriteJSON(wsCommand{Command: "refresh"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&s); err != nil {
		t.Fatalf("refresh update: %v", err)
	}
	if s.Seq != 2 {
		t.Errorf("seq after refresh = %d, want 2", s.Seq)
	}
}

// ---------- SSE ----------

func TestServer_StatusStream(t *testing.T) {
	sim := simulator.New()
	ctrl := httptest.NewServer(sim.Handler())
	defer ctrl.Close()
	p := panel.New(turntable.NewClient(ctrl.URL), panel.Config{})
	defer p.Close()

	b := NewStatusBroadcaster()
	s, err := NewServer("127.0.0.1:0", p, b, FormConfig{})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Mux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	buf := make([]byte, 256)
	n, _ := resp.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), ": connected") {
		t.Fatalf("first chunk = %q", buf[:n])
	}

	deadline := time.Now().Add(time.Second)
	for b.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	b.Broadcast("info", "set vertical to 90°")
	n, _ = resp.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), `"msg":"set vertical to 90°"`) {
		t.Errorf("event chunk = %q", buf[:n])
	}
}

// ---------- Serve ----------

func TestServer_ServeShutsDown(t *testing.T) {
	ts, p, _ := newTestServer(t, nil)
	ts.Close()

	s, err := NewServer("", p, NewStatusBroadcaster(), FormConfig{})
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, _ := get(t, "http://"+ln.Addr().String()+"/api/state")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
