// Package render turns an angle into a drawing of a dial or a gauge.
//
// Rendering is a pure mapping: the same angle and options always produce the
// same Drawing, and no I/O happens outside of WriteSVG.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cjeanneret/turntable/internal/logic/geometry"
)

// Variant selects the visual metaphor used to display an angle.
type Variant string

const (
	VariantDial  Variant = "dial"
	VariantGauge Variant = "gauge"
)

// Defaults used when Options leave a field empty.
const (
	DefaultSize          = 200.0
	DefaultGaugeRadius   = 80.0
	DefaultTrackColor    = "#e5e7eb"
	DefaultProgressColor = "#3b82f6"

	dialTransition  = "all 0.5s ease-in-out"
	gaugeTransition = "stroke-dashoffset 0.5s ease"
)

// ParseVariant converts a config or query value to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantDial, VariantGauge:
		return v, nil
	case "":
		return VariantDial, nil
	default:
		return "", fmt.Errorf("unknown display variant %q", s)
	}
}

// Colors is the gauge color pair.
type Colors struct {
	Track    string `json:"track" yaml:"track"`
	Progress string `json:"progress" yaml:"progress"`
}

// Options holds the display settings of one angle widget.
type Options struct {
	Variant Variant
	Size    float64
	Label   string
	Letter  string  // dial only, drawn in the center
	Colors  Colors  // gauge only
	Radius  float64 // gauge ring radius; 0 = DefaultGaugeRadius scaled to Size
}

func (o Options) withDefaults() Options {
	if o.Variant == "" {
		o.Variant = VariantDial
	}
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
	if o.Radius <= 0 {
		o.Radius = DefaultGaugeRadius * o.Size / DefaultSize
	}
	if o.Colors.Track == "" {
		o.Colors.Track = DefaultTrackColor
	}
	if o.Colors.Progress == "" {
		o.Colors.Progress = DefaultProgressColor
	}
	return o
}

// Drawing is the description of a rendered angle widget.
// Exactly one of Dial and Gauge is set, according to Variant.
type Drawing struct {
	Variant    Variant                 `json:"variant"`
	Angle      float64                 `json:"angle"`
	Label      string                  `json:"label"`
	Letter     string                  `json:"letter,omitempty"`
	Caption    string                  `json:"caption"`
	Colors     Colors                  `json:"colors"`
	Transition string                  `json:"transition"`
	Dial       *geometry.DialGeometry  `json:"dial,omitempty"`
	Gauge      *geometry.GaugeGeometry `json:"gauge,omitempty"`
}

// Render computes the drawing of angle with the given options.
func Render(angle float64, opts Options) Drawing {
	opts = opts.withDefaults()

	d := Drawing{
		Variant: opts.Variant,
		Angle:   angle,
		Label:   opts.Label,
		Caption: Caption(opts.Label, angle),
		Colors:  opts.Colors,
	}

	switch opts.Variant {
	case VariantGauge:
		g := geometry.Gauge(angle, opts.Size, opts.Radius)
		d.Gauge = &g
		d.Transition = gaugeTransition
	default:
		g := geometry.Dial(angle, opts.Size)
		d.Dial = &g
		d.Letter = opts.Letter
		d.Transition = dialTransition
	}
	return d
}

// Caption formats the text shown under a widget, e.g. "H: 45°".
// The raw angle is printed, so 360 and 0 are told apart here only.
func Caption(label string, angle float64) string {
	value := strconv.FormatFloat(angle, 'f', -1, 64) + "°"
	if label == "" {
		return value
	}
	return label + ": " + value
}
