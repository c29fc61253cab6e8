// Package turntable talks to the remote two-axis turntable controller over HTTP.
//
// The controller exposes three GET endpoints: /status, /rotate and /set_angle.
// This package only issues requests; it does not drive any motor.
package turntable

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes of controller calls. Use errors.Is to test them.
var (
	ErrNetworkFailure    = errors.New("network failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// Axis is one of the two rotation degrees of freedom.
type Axis string

const (
	Horizontal Axis = "horizontal"
	Vertical   Axis = "vertical"
)

// Axes lists both axes in display order.
var Axes = []Axis{Horizontal, Vertical}

// ParseAxis converts a motor name to an Axis.
func ParseAxis(s string) (Axis, error) {
	switch a := Axis(strings.ToLower(s)); a {
	case Horizontal, Vertical:
		return a, nil
	default:
		return "", fmt.Errorf("unknown axis %q", s)
	}
}

// Direction is the sense of a relative rotation.
type Direction string

const (
	Clockwise        Direction = "cw"
	CounterClockwise Direction = "ccw"
)

// ParseDirection converts a query or form value to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case Clockwise, CounterClockwise:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Reading is the pair of angles reported by the controller, in degrees.
type Reading struct {
	Horizontal float64 `json:"horizontal"`
	Vertical   float64 `json:"vertical"`
}

// Angle returns the reading of one axis.
func (r Reading) Angle(axis Axis) float64 {
	if axis == Vertical {
		return r.Vertical
	}
	return r.Horizontal
}

// FieldNaming selects the JSON keys of the /status payload.
type FieldNaming string

const (
	// NamingPlain uses "horizontal" and "vertical".
	NamingPlain FieldNaming = "plain"
	// NamingSuffixed uses "horizontal_angle" and "vertical_angle".
	NamingSuffixed FieldNaming = "suffixed"
	// NamingAuto accepts either, preferring plain when both are present.
	NamingAuto FieldNaming = "auto"
)

// ParseFieldNaming converts a config value to a FieldNaming.
func ParseFieldNaming(s string) (FieldNaming, error) {
	switch n := FieldNaming(strings.ToLower(s)); n {
	case NamingPlain, NamingSuffixed, NamingAuto:
		return n, nil
	case "":
		return NamingAuto, nil
	default:
		return "", fmt.Errorf("unknown status field naming %q", s)
	}
}
