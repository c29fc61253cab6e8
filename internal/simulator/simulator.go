// Package simulator serves an in-process stand-in for the turntable controller.
//
// It answers /status, /rotate and /set_angle like the Raspberry Pi API does,
// keeping the two angles in memory. It is meant for development and tests.
package simulator

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/cjeanneret/turntable/internal/debug"
	"github.com/cjeanneret/turntable/internal/hw/turntable"
	"github.com/cjeanneret/turntable/internal/validate"
)

// StepsPerDegree is the microstep count of one degree on the real rig.
const StepsPerDegree = 32

// Option configures a Simulator.
type Option func(*Simulator)

// WithFieldNaming sets the keys used by /status (default suffixed).
func WithFieldNaming(n turntable.FieldNaming) Option {
	return func(s *Simulator) {
		s.naming = n
	}
}

// WithSpeed makes moves take time, in degrees per second. 0 means instant.
func WithSpeed(degPerSec float64) Option {
	return func(s *Simulator) {
		s.speed = degPerSec
	}
}

// WithAngles sets the starting angles.
func WithAngles(r turntable.Reading) Option {
	return func(s *Simulator) {
		s.angles[turntable.Horizontal] = r.Horizontal
		s.angles[turntable.Vertical] = r.Vertical
	}
}

// Simulator holds the simulated controller state.
type Simulator struct {
	naming turntable.FieldNaming
	speed  float64

	mu     sync.Mutex
	angles map[turntable.Axis]float64
	calls  map[string]int
}

// New creates a simulator at 0°/0°.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		naming: turntable.NamingSuffixed,
		angles: map[turntable.Axis]float64{
			turntable.Horizontal: 0,
			turntable.Vertical:   0,
		},
		calls: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes of the simulated controller.
func (s *Simulator) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/rotate", s.handleRotate).Methods(http.MethodGet)
	r.HandleFunc("/set_angle", s.handleSetAngle).Methods(http.MethodGet)
	return r
}

// Angles returns the current simulated angles.
func (s *Simulator) Angles() turntable.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return turntable.Reading{
		Horizontal: s.angles[turntable.Horizontal],
		Vertical:   s.angles[turntable.Vertical],
	}
}

// Calls returns how many times an endpoint ("/status", "/rotate", "/set_angle") was hit.
func (s *Simulator) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Simulator) count(path string) {
	s.mu.Lock()
	s.calls[path]++
	s.mu.Unlock()
}

func (s *Simulator) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.count("/status")
	writeJSON(w, http.StatusOK, turntable.EncodeStatus(s.Angles(), s.naming))
}

func (s *Simulator) handleRotate(w http.ResponseWriter, r *http.Request) {
	s.count("/rotate")
	q := r.URL.Query()

	axis, ok := s.motor(w, q.Get("motor"))
	if !ok {
		return
	}
	angle, ok := s.number(w, "angle", q.Get("angle"), "gte=0,lte=360")
	if !ok {
		return
	}
	dir, err := turntable.ParseDirection(q.Get("direction"))
	if err != nil {
		writeError(w, "direction", err.Error())
		return
	}

	delta := angle
	if dir == turntable.CounterClockwise {
		delta = -angle
	}

	s.mu.Lock()
	estimate := normalize(s.angles[axis] + delta)
	s.mu.Unlock()

	s.move(axis, estimate, angle)
	debug.Live("simulator: rotate %s by %g° %s", axis, angle, dir)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "rotating",
		"motor":              axis,
		"angle_change":       angle,
		"direction":          dir,
		"new_angle_estimate": estimate,
	})
}

func (s *Simulator) handleSetAngle(w http.ResponseWriter, r *http.Request) {
	s.count("/set_angle")
	q := r.URL.Query()

	axis, ok := s.motor(w, q.Get("motor"))
	if !ok {
		return
	}
	target, ok := s.number(w, "target_angle", q.Get("target_angle"), "gte=0,lte=359")
	if !ok {
		return
	}

	s.mu.Lock()
	from := s.angles[axis]
	s.mu.Unlock()

	// Shortest way round.
	diff := normalize(target - from)
	dir, travel := turntable.Clockwise, diff
	if diff > 180 {
		dir, travel = turntable.CounterClockwise, 360-diff
	}

	s.move(axis, target, travel)
	debug.Live("simulator: set %s to %g° (%s)", axis, target, dir)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "setting absolute angle",
		"motor":      axis,
		"from_angle": from,
		"to_angle":   target,
		"direction":  dir,
		"steps":      int(travel * StepsPerDegree),
	})
}

// move records the final angle of axis, immediately or once the travel time
// at the configured speed has elapsed.
func (s *Simulator) move(axis turntable.Axis, final, travel float64) {
	set := func() {
		s.mu.Lock()
		s.angles[axis] = final
		s.mu.Unlock()
	}
	if s.speed <= 0 {
		set()
		return
	}
	d := time.Duration(travel / s.speed * float64(time.Second))
	time.AfterFunc(d, set)
}

func (s *Simulator) motor(w http.ResponseWriter, v string) (turntable.Axis, bool) {
	axis, err := turntable.ParseAxis(v)
	if err != nil {
		writeError(w, "motor", err.Error())
		return "", false
	}
	return axis, true
}

func (s *Simulator) number(w http.ResponseWriter, field, raw, rule string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, field, field+" must be a number")
		return 0, false
	}
	if err := validate.Var(field, v, rule); err != nil {
		writeError(w, field, err.Error())
		return 0, false
	}
	return v, true
}

func normalize(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]string{{"loc": field, "msg": msg}},
	})
}
