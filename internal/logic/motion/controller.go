package motion

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/turntable/internal/debug"
	"github.com/cjeanneret/turntable/internal/hw/turntable"
)

// Commander is the part of the turntable client the controller needs.
type Commander interface {
	Rotate(ctx context.Context, axis turntable.Axis, amount float64, dir turntable.Direction) error
	SetAngle(ctx context.Context, axis turntable.Axis, target float64) error
}

// Recorder receives one call per issued command.
type Recorder interface {
	ObserveCommand(axis, kind string, err error)
}

// Outcome is the result of the command issued (or not) for one axis.
type Outcome struct {
	Axis    turntable.Axis `json:"axis"`
	Command *Command       `json:"command,omitempty"`
	Err     error          `json:"-"`
	Error   string         `json:"error,omitempty"`
}

// Sent reports whether a command was issued for the axis.
func (o Outcome) Sent() bool {
	return o.Command != nil
}

// Controller turns per-axis fields into controller requests.
type Controller struct {
	cmd Commander
	rec Recorder
}

func NewController(cmd Commander, rec Recorder) *Controller {
	return &Controller{
		cmd: cmd,
		rec: rec,
	}
}

// Send issues one command.
func (c *Controller) Send(ctx context.Context, cmd Command) error {
	var err error
	switch cmd.Kind {
	case KindRotate:
		err = c.cmd.Rotate(ctx, cmd.Axis, cmd.Amount, cmd.Direction)
	case KindSetAngle:
		err = c.cmd.SetAngle(ctx, cmd.Axis, cmd.Target)
	default:
		err = fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
	if c.rec != nil {
		c.rec.ObserveCommand(string(cmd.Axis), string(cmd.Kind), err)
	}
	return err
}

// Apply plans and sends the commands of both axes concurrently.
// Each axis runs on its own; an error on one never cancels the other,
// so the group always returns nil and errors live in the outcomes.
func (c *Controller) Apply(ctx context.Context, h, v Fields) []Outcome {
	fields := [...]Fields{h, v}
	out := make([]Outcome, len(turntable.Axes))

	var g errgroup.Group
	for i, axis := range turntable.Axes {
		out[i].Axis = axis
		cmd, ok := Plan(axis, fields[i])
		if !ok {
			debug.Verbose("motion: nothing to send for %s", axis)
			continue
		}
		out[i].Command = &cmd
		g.Go(func() error {
			if err := c.Send(ctx, cmd); err != nil {
				out[i].Err = err
				out[i].Error = err.Error()
				debug.Logger().Warn().Err(err).Str("axis", string(axis)).Str("kind", string(cmd.Kind)).Msg("command failed")
				return nil
			}
			debug.Live("motion: %s sent", cmd)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
