package render

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"

	svg "github.com/ajstarks/svgo"
)

// captionHeight is the room kept under the face for the caption line.
const captionHeight = 30

// errWriter keeps the first write error; svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}

// SVG returns the drawing serialized as an SVG document.
func (d Drawing) SVG() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.WriteSVG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSVG serializes the drawing to w.
func (d Drawing) WriteSVG(w io.Writer) error {
	ew := &errWriter{w: w}
	canvas := svg.New(ew)

	switch {
	case d.Dial != nil:
		d.writeDial(canvas)
	case d.Gauge != nil:
		d.writeGauge(canvas)
	default:
		return fmt.Errorf("render: empty drawing (variant %q)", d.Variant)
	}

	if ew.err != nil {
		return fmt.Errorf("render: write svg: %w", ew.err)
	}
	return nil
}

func (d Drawing) writeDial(canvas *svg.SVG) {
	g := d.Dial
	size := px(g.Size)
	c := g.Center
	canvas.Start(size, size+captionHeight)

	canvas.Circle(px(c.X), px(c.Y), px(g.RingRadius), `stroke="white"`, `stroke-width="4"`, `fill="none"`)
	canvas.Circle(px(c.X), px(c.Y), px(g.DiscRadius), `stroke="black"`, `stroke-width="3"`, `fill="black"`)

	for _, t := range g.Ticks {
		canvas.Group(`class="tick"`)
		canvas.Line(px(t.Outer.X), px(t.Outer.Y), px(t.Inner.X), px(t.Inner.Y), `stroke="white"`, `stroke-width="2"`)
		canvas.Text(px(t.Label.X), px(t.Label.Y), strconv.Itoa(t.Value),
			`text-anchor="middle"`, `dominant-baseline="middle"`, `font-size="12"`, `fill="white"`)
		canvas.Gend()
	}

	canvas.Line(px(c.X), px(c.Y), px(g.Pointer.X), px(g.Pointer.Y),
		`class="pointer"`, `stroke="red"`, `stroke-width="3"`, attr("style", "transition: "+d.Transition))

	if d.Letter != "" {
		canvas.Text(px(c.X), px(c.Y), d.Letter,
			`text-anchor="middle"`, `dominant-baseline="middle"`, `font-size="48"`, `font-weight="bold"`, `fill="red"`)
	}

	d.writeCaption(canvas, size)
	canvas.End()
}

func (d Drawing) writeGauge(canvas *svg.SVG) {
	g := d.Gauge
	size := px(g.Size)
	cx, cy, r := px(g.Center.X), px(g.Center.Y), px(g.Radius)
	canvas.Start(size, size+captionHeight)

	canvas.Circle(cx, cy, r, attr("stroke", d.Colors.Track), `stroke-width="12"`, `fill="transparent"`)

	// The arc starts at 12 o'clock; only the arc is rotated, not the needle.
	canvas.Circle(cx, cy, r,
		`class="progress"`,
		attr("stroke", d.Colors.Progress),
		`stroke-width="12"`,
		`fill="transparent"`,
		attr("stroke-dasharray", num(g.Circumference)),
		attr("stroke-dashoffset", num(g.DashOffset)),
		`stroke-linecap="round"`,
		attr("transform", fmt.Sprintf("rotate(-90 %d %d)", cx, cy)),
		attr("style", "transition: "+d.Transition),
	)

	canvas.Line(cx, cy, px(g.Needle.X), px(g.Needle.Y), `class="needle"`, `stroke="#ef4444"`, `stroke-width="4"`)

	d.writeCaption(canvas, size)
	canvas.End()
}

func (d Drawing) writeCaption(canvas *svg.SVG, size int) {
	canvas.Text(size/2, size+captionHeight-10, d.Caption,
		`class="caption"`, `text-anchor="middle"`, `font-size="16"`, `font-weight="bold"`, `fill="white"`)
}

func px(v float64) int {
	return int(math.Round(v))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func attr(name, value string) string {
	return name + `="` + value + `"`
}
