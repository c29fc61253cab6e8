package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(w.Result().Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(body)
}

func TestRecorder_Exposition(t *testing.T) {
	r := New()
	r.ObservePoll(PollSuccess, 20*time.Millisecond)
	r.ObservePoll(PollNetwork, time.Second)
	r.ObservePoll(PollStale, 0)
	r.SetAngle("horizontal", 45)
	r.ObserveCommand("vertical", "set_angle", nil)
	r.ObserveCommand("vertical", "set_angle", errors.New("down"))
	r.ObserveHTTP("/api/state", "GET", 200, time.Millisecond)

	body := scrape(t, r)
	for _, want := range []string{
		`turntable_polls_total{result="success"} 1`,
		`turntable_polls_total{result="network"} 1`,
		`turntable_polls_total{result="stale"} 1`,
		`turntable_poll_duration_seconds_count 2`,
		`turntable_angle_degrees{axis="horizontal"} 45`,
		`turntable_commands_total{axis="vertical",kind="set_angle",result="ok"} 1`,
		`turntable_commands_total{axis="vertical",kind="set_angle",result="error"} 1`,
		`turntable_http_requests_total{method="GET",route="/api/state",status="200"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestRecorder_Isolated(t *testing.T) {
	a, b := New(), New()
	a.SetAngle("vertical", 90)
	if strings.Contains(scrape(t, b), "turntable_angle_degrees{") {
		t.Error("second recorder sees samples of the first")
	}
}

func TestRecorder_RegistryGather(t *testing.T) {
	r := New()
	r.SetAngle("vertical", 90)
	r.SetAngle("horizontal", 45)

	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	got := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "turntable_angle_degrees" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "axis" {
					got[lp.GetValue()] = m.GetGauge().GetValue()
				}
			}
		}
	}
	if got["horizontal"] != 45 || got["vertical"] != 90 || len(got) != 2 {
		t.Errorf("angles = %v", got)
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.ObservePoll(PollSuccess, time.Millisecond)
	r.SetAngle("horizontal", 1)
	r.ObserveCommand("horizontal", "rotate", nil)
	r.ObserveHTTP("/", "GET", 200, 0)
	if r.Registry() != nil {
		t.Error("nil recorder should have no registry")
	}
}
