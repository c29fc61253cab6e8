package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cjeanneret/turntable/internal/debug"
	"github.com/cjeanneret/turntable/internal/hw/turntable"
	"github.com/cjeanneret/turntable/internal/logic/motion"
	"github.com/cjeanneret/turntable/internal/panel"
	"github.com/cjeanneret/turntable/internal/render"
	"github.com/cjeanneret/turntable/internal/validate"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Panel is the control panel driven by the handlers.
type Panel interface {
	Snapshot() panel.Snapshot
	Display(axis turntable.Axis) render.Options
	Drawing(axis turntable.Axis) render.Drawing
	SetFields(axis turntable.Axis, f motion.Fields) error
	Apply(ctx context.Context) ([]motion.Outcome, error)
	Poll(ctx context.Context) error
	Subscribe() (<-chan panel.Snapshot, func())
}

// AxisForm is the caption of one widget in the page.
type AxisForm struct {
	Label  string `json:"label"`
	Letter string `json:"letter"`
}

// FormConfig holds the display defaults the page starts with (from config).
type FormConfig struct {
	Variant        string   `json:"variant"`
	Size           float64  `json:"size"`
	PollIntervalMs int64    `json:"poll_interval_ms"`
	Horizontal     AxisForm `json:"horizontal"`
	Vertical       AxisForm `json:"vertical"`
}

// ApplyRequest optionally carries the fields of both axes. Axes left out
// keep the fields stored by PUT /api/fields/{axis}.
type ApplyRequest struct {
	Horizontal *motion.Fields `json:"horizontal,omitempty"`
	Vertical   *motion.Fields `json:"vertical,omitempty"`
}

// ApplyResponse lists what was sent for each axis.
type ApplyResponse struct {
	Status   string           `json:"status"`
	Outcomes []motion.Outcome `json:"outcomes"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Panel        Panel
	Broadcaster  *StatusBroadcaster
	FormDefaults FormConfig
	staticFS     fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(p Panel, broadcaster *StatusBroadcaster, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Panel:        p,
		Broadcaster:  broadcaster,
		FormDefaults: formDefaults,
		staticFS:     staticFS,
	}
}

// HandleConfig returns the display defaults (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.FormDefaults)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleState returns the panel snapshot.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Panel.Snapshot())
}

// HandleDial renders the displayed angle of an axis as SVG.
// ?variant=dial|gauge overrides the configured variant.
func (h *Handlers) HandleDial(w http.ResponseWriter, r *http.Request) {
	axis, ok := axisVar(w, r)
	if !ok {
		return
	}

	d := h.Panel.Drawing(axis)
	if q := r.URL.Query().Get("variant"); q != "" {
		v, err := render.ParseVariant(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ERR_ONEOF", err.Error(), "variant")
			return
		}
		opts := h.Panel.Display(axis)
		opts.Variant = v
		d = render.Render(d.Angle, opts)
	}

	data, err := d.SVG()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ERR_RENDER", err.Error(), "")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// HandleFields stores the pending fields of an axis.
func (h *Handlers) HandleFields(w http.ResponseWriter, r *http.Request) {
	axis, ok := axisVar(w, r)
	if !ok {
		return
	}

	var f motion.Fields
	if !decodeBody(w, r, &f, false) {
		return
	}
	if !fillDefaults(w, &f) {
		return
	}
	if err := h.Panel.SetFields(axis, f); err != nil {
		writeError(w, http.StatusBadRequest, "ERR_AXIS", err.Error(), "axis")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// HandleApply sends the pending commands of both axes and returns what was sent.
func (h *Handlers) HandleApply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	pending := map[turntable.Axis]*motion.Fields{
		turntable.Horizontal: req.Horizontal,
		turntable.Vertical:   req.Vertical,
	}
	for _, axis := range turntable.Axes {
		f := pending[axis]
		if f == nil {
			continue
		}
		if !fillDefaults(w, f) {
			return
		}
		if err := h.Panel.SetFields(axis, *f); err != nil {
			writeError(w, http.StatusBadRequest, "ERR_AXIS", err.Error(), string(axis))
			return
		}
	}

	out, err := h.Panel.Apply(r.Context())
	if errors.Is(err, panel.ErrClosed) {
		writeError(w, http.StatusServiceUnavailable, "ERR_CLOSED", err.Error(), "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ERR_APPLY", err.Error(), "")
		return
	}

	for _, o := range out {
		switch {
		case !o.Sent():
			continue
		case o.Err != nil:
			h.broadcast("error", fmt.Sprintf("%s failed: %v", o.Command, o.Err))
		default:
			h.broadcast("info", o.Command.String())
		}
	}
	writeJSON(w, http.StatusAccepted, ApplyResponse{Status: "sent", Outcomes: out})
}

// HandleRefresh polls right away and returns the resulting snapshot.
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	err := h.Panel.Poll(r.Context())
	switch {
	case errors.Is(err, panel.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "ERR_CLOSED", err.Error(), "")
	case errors.Is(err, turntable.ErrMalformedResponse):
		writeError(w, http.StatusBadGateway, "ERR_MALFORMED", err.Error(), "")
	case err != nil:
		writeError(w, http.StatusBadGateway, "ERR_NETWORK", err.Error(), "")
	default:
		writeJSON(w, http.StatusOK, h.Panel.Snapshot())
	}
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handlers) broadcast(level, msg string) {
	if h.Broadcaster != nil {
		h.Broadcaster.Broadcast(level, msg)
	}
}

func axisVar(w http.ResponseWriter, r *http.Request) (turntable.Axis, bool) {
	axis, err := turntable.ParseAxis(mux.Vars(r)["axis"])
	if err != nil {
		writeError(w, http.StatusNotFound, "ERR_AXIS", err.Error(), "axis")
		return "", false
	}
	return axis, true
}

// decodeBody reads a JSON body into v. An empty body is accepted only when
// optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF) && optional:
		return true
	default:
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "ERR_TOO_LARGE", "request body too large", "")
			return false
		}
		writeError(w, http.StatusBadRequest, "ERR_JSON", "invalid JSON: "+err.Error(), "")
		return false
	}
}

// fillDefaults sets the default direction. Amounts are not range-checked
// here; an axis the controller refuses reports it in its own outcome.
func fillDefaults(w http.ResponseWriter, f *motion.Fields) bool {
	if err := validate.Defaults(f); err != nil {
		writeError(w, http.StatusInternalServerError, "ERR_DEFAULTS", err.Error(), "")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Error(err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg, field string) {
	writeJSON(w, status, validate.FieldError{Code: code, Message: msg, Field: field})
}
