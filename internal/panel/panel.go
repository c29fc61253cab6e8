// Package panel polls the turntable controller and holds what the operator sees:
// the last reported angle pair and the pending command fields of both axes.
//
// Displayed angles only change when a poll succeeds. Commands never update
// them, and failed polls leave them as they were.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/turntable/internal/debug"
	"github.com/cjeanneret/turntable/internal/hw/turntable"
	"github.com/cjeanneret/turntable/internal/logic/motion"
	"github.com/cjeanneret/turntable/internal/metrics"
	"github.com/cjeanneret/turntable/internal/render"
)

var (
	ErrClosed         = errors.New("panel closed")
	ErrAlreadyStarted = errors.New("panel already started")
)

// DefaultInterval is used when Config.Interval is not set.
const DefaultInterval = time.Second

// State of the poll cycle.
type State string

const (
	StateIdle    State = "idle"
	StatePolling State = "polling"
	StateStopped State = "stopped"
)

// Client is what the panel needs from the controller.
type Client interface {
	Status(ctx context.Context) (turntable.Reading, error)
	motion.Commander
}

// Config holds the panel settings.
type Config struct {
	Interval time.Duration
	Display  map[turntable.Axis]render.Options
	Metrics  *metrics.Recorder
}

// DefaultDisplay returns dial options labelled "Horizontal"/"H" and "Vertical"/"V".
func DefaultDisplay() map[turntable.Axis]render.Options {
	return map[turntable.Axis]render.Options{
		turntable.Horizontal: {Variant: render.VariantDial, Label: "Horizontal", Letter: "H"},
		turntable.Vertical:   {Variant: render.VariantDial, Label: "Vertical", Letter: "V"},
	}
}

// Option configures a Panel.
type Option func(*Panel)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Panel) {
		p.now = now
	}
}

// Snapshot is a copy of the panel state.
type Snapshot struct {
	Seq         uint64                           `json:"seq"`
	Angles      turntable.Reading                `json:"angles"`
	Fields      map[turntable.Axis]motion.Fields `json:"fields"`
	State       State                            `json:"state"`
	Polls       uint64                           `json:"polls"`
	Successes   uint64                           `json:"successes"`
	Failures    uint64                           `json:"failures"`
	Stale       uint64                           `json:"stale"`
	LastError   string                           `json:"last_error,omitempty"`
	LastSuccess time.Time                        `json:"last_success"`
}

// Panel is the control panel of one turntable.
type Panel struct {
	client Client
	cfg    Config
	ctrl   *motion.Controller
	now    func() time.Time

	mu        sync.Mutex
	issued    uint64 // last sequence number handed to a poll
	applied   uint64 // sequence number of the reading on display
	angles    turntable.Reading
	fields    map[turntable.Axis]motion.Fields
	state     State
	inflight  int
	polls     uint64
	successes uint64
	failures  uint64
	stale     uint64
	lastErr   string
	lastOK    time.Time
	subs      map[chan Snapshot]struct{}
	started   bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}

	// life is cancelled by Close; every fetch runs under it.
	life     context.Context
	stop     context.CancelFunc
	fetching sync.WaitGroup

	closeOnce sync.Once
}

// New creates a panel showing 0°/0° until the first successful poll.
func New(client Client, cfg Config, opts ...Option) *Panel {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	display := DefaultDisplay()
	for axis, o := range cfg.Display {
		display[axis] = o
	}
	cfg.Display = display

	life, stop := context.WithCancel(context.Background())
	p := &Panel{
		life:   life,
		stop:   stop,
		client: client,
		cfg:    cfg,
		ctrl:   motion.NewController(client, cfg.Metrics),
		now:    time.Now,
		fields: map[turntable.Axis]motion.Fields{
			turntable.Horizontal: {Direction: turntable.Clockwise},
			turntable.Vertical:   {Direction: turntable.Clockwise},
		},
		state: StateIdle,
		subs:  make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the poll interval in use.
func (p *Panel) Interval() time.Duration {
	return p.cfg.Interval
}

// Display returns the render options of an axis.
func (p *Panel) Display(axis turntable.Axis) render.Options {
	return p.cfg.Display[axis]
}

// Start polls once right away, then on every interval until ctx is done or
// Close is called.
func (p *Panel) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	debug.Info("panel: polling %s every %s", describe(p.client), p.cfg.Interval)
	go p.loop(ctx, done)
	return nil
}

func (p *Panel) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	_ = p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			// Poll is synchronous, so a slow fetch makes the ticker drop ticks
			// instead of stacking requests.
			_ = p.Poll(ctx)
		}
	}
}

// Close stops polling, cancels fetches in flight and waits for them and for
// the poll loop to exit. Subscriber channels are closed. Calling Close more
// than once is a no-op.
func (p *Panel) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.state = StateStopped
		cancel, done := p.cancel, p.done
		subs := p.subs
		p.subs = make(map[chan Snapshot]struct{})
		p.mu.Unlock()

		p.stop()
		if cancel != nil {
			cancel()
			<-done
		}
		p.fetching.Wait()
		for ch := range subs {
			close(ch)
		}
		debug.Info("panel: stopped")
	})
}

// Poll fetches the angles once. Errors are recorded in the snapshot and
// returned, but never change the displayed angles. The fetch is cancelled
// when ctx is done or the panel is closed.
func (p *Panel) Poll(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	// Added under mu while open, so Close never waits on a poll it cannot see.
	p.fetching.Add(1)
	defer p.fetching.Done()
	p.issued++
	seq := p.issued
	p.polls++
	p.inflight++
	p.state = StatePolling
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.life, cancel)
	defer stop()

	debug.Verbose("panel: poll #%d", seq)
	start := time.Now()
	reading, err := p.client.Status(ctx)
	took := time.Since(start)

	if err != nil {
		p.onPollFailure(seq, err, took)
		return err
	}
	p.onPollSuccess(seq, reading, took)
	return nil
}

// onPollSuccess replaces the displayed angles unless a newer reading is
// already on display.
func (p *Panel) onPollSuccess(seq uint64, r turntable.Reading, took time.Duration) {
	p.mu.Lock()
	p.finishPoll()
	if p.closed {
		p.mu.Unlock()
		debug.Verbose("panel: drop reading #%d, panel closed", seq)
		return
	}
	if seq <= p.applied {
		p.stale++
		applied := p.applied
		p.mu.Unlock()
		p.cfg.Metrics.ObservePoll(metrics.PollStale, took)
		debug.Verbose("panel: discard reading #%d, #%d already applied", seq, applied)
		return
	}
	p.applied = seq
	p.angles = r
	p.successes++
	p.lastErr = ""
	p.lastOK = p.now()
	p.notifyLocked(p.snapshotLocked())
	p.mu.Unlock()

	p.cfg.Metrics.ObservePoll(metrics.PollSuccess, took)
	p.cfg.Metrics.SetAngle(string(turntable.Horizontal), r.Horizontal)
	p.cfg.Metrics.SetAngle(string(turntable.Vertical), r.Vertical)
	debug.Live("panel: H=%g° V=%g°", r.Horizontal, r.Vertical)
}

// onPollFailure keeps the displayed angles and records the error.
func (p *Panel) onPollFailure(seq uint64, err error, took time.Duration) {
	class := classify(err)

	p.mu.Lock()
	p.finishPoll()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.failures++
	p.lastErr = err.Error()
	p.mu.Unlock()

	p.cfg.Metrics.ObservePoll(class, took)
	debug.Logger().Warn().Err(err).Uint64("seq", seq).Str("class", class).Msg("poll failed")
}

// finishPoll must be called with mu held.
func (p *Panel) finishPoll() {
	p.inflight--
	if p.inflight == 0 && !p.closed {
		p.state = StateIdle
	}
}

func classify(err error) string {
	if errors.Is(err, turntable.ErrMalformedResponse) {
		return metrics.PollMalformed
	}
	return metrics.PollNetwork
}

// SetFields stores the pending inputs of an axis.
func (p *Panel) SetFields(axis turntable.Axis, f motion.Fields) error {
	if _, err := turntable.ParseAxis(string(axis)); err != nil {
		return err
	}
	p.mu.Lock()
	p.fields[axis] = f
	p.mu.Unlock()
	debug.Verbose("panel: fields %s = %+v", axis, f)
	return nil
}

// Fields returns the pending inputs of an axis.
func (p *Panel) Fields(axis turntable.Axis) motion.Fields {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fields[axis]
}

// Apply sends the pending commands of both axes. The displayed angles are
// left alone; the next poll shows where the turntable actually went.
func (p *Panel) Apply(ctx context.Context) ([]motion.Outcome, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	h, v := p.fields[turntable.Horizontal], p.fields[turntable.Vertical]
	p.mu.Unlock()

	return p.ctrl.Apply(ctx, h, v), nil
}

// Snapshot returns a copy of the current state.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Panel) snapshotLocked() Snapshot {
	fields := make(map[turntable.Axis]motion.Fields, len(p.fields))
	for k, v := range p.fields {
		fields[k] = v
	}
	return Snapshot{
		Seq:         p.applied,
		Angles:      p.angles,
		Fields:      fields,
		State:       p.state,
		Polls:       p.polls,
		Successes:   p.successes,
		Failures:    p.failures,
		Stale:       p.stale,
		LastError:   p.lastErr,
		LastSuccess: p.lastOK,
	}
}

// Drawing renders the displayed angle of an axis.
func (p *Panel) Drawing(axis turntable.Axis) render.Drawing {
	p.mu.Lock()
	angle := p.angles.Angle(axis)
	p.mu.Unlock()
	return render.Render(angle, p.cfg.Display[axis])
}

// Subscribe returns a channel receiving a snapshot after each applied
// reading, and a function to unsubscribe. Updates are dropped when the
// channel is full.
func (p *Panel) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 4)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	return ch, func() {
		p.mu.Lock()
		_, ok := p.subs[ch]
		delete(p.subs, ch)
		p.mu.Unlock()
		if ok {
			close(ch)
		}
	}
}

// notifyLocked must be called with mu held, so that no channel is closed
// while it is being sent to.
func (p *Panel) notifyLocked(s Snapshot) {
	for ch := range p.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func describe(c Client) string {
	if b, ok := c.(interface{ BaseURL() string }); ok {
		return b.BaseURL()
	}
	return fmt.Sprintf("%T", c)
}
