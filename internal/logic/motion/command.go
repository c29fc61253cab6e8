// Package motion decides which command each axis gets and sends it.
package motion

import (
	"fmt"

	"github.com/cjeanneret/turntable/internal/hw/turntable"
)

// Kind tells which controller endpoint a command targets.
type Kind string

const (
	KindRotate   Kind = "rotate"
	KindSetAngle Kind = "set_angle"
)

// Fields are the user inputs of one axis. Values are taken as typed: Plan
// decides what is sent, and the controller rejects what it cannot do.
type Fields struct {
	RotateAmount float64             `json:"rotate_amount" yaml:"rotate_amount"`
	TargetAngle  float64             `json:"target_angle" yaml:"target_angle"`
	Direction    turntable.Direction `json:"direction" yaml:"direction" default:"cw"`
}

// Command is either a relative rotation or an absolute move.
// Amount and Direction are set for KindRotate, Target for KindSetAngle.
type Command struct {
	Kind      Kind                `json:"kind"`
	Axis      turntable.Axis      `json:"axis"`
	Amount    float64             `json:"amount,omitempty"`
	Direction turntable.Direction `json:"direction,omitempty"`
	Target    float64             `json:"target,omitempty"`
}

func (c Command) String() string {
	if c.Kind == KindRotate {
		return fmt.Sprintf("rotate %s by %g° %s", c.Axis, c.Amount, c.Direction)
	}
	return fmt.Sprintf("set %s to %g°", c.Axis, c.Target)
}

// Plan picks the command for one axis: a positive rotation amount wins,
// then a positive target angle, otherwise nothing is sent.
func Plan(axis turntable.Axis, f Fields) (Command, bool) {
	switch {
	case f.RotateAmount > 0:
		dir := f.Direction
		if dir == "" {
			dir = turntable.Clockwise
		}
		return Command{Kind: KindRotate, Axis: axis, Amount: f.RotateAmount, Direction: dir}, true
	case f.TargetAngle > 0:
		return Command{Kind: KindSetAngle, Axis: axis, Target: f.TargetAngle}, true
	default:
		return Command{}, false
	}
}
