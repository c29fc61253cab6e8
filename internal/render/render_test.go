package render

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

// ---------- ParseVariant ----------

func TestParseVariant(t *testing.T) {
	cases := []struct {
		in   string
		want Variant
	}{
		{"dial", VariantDial},
		{"gauge", VariantGauge},
		{" Gauge ", VariantGauge},
		{"", VariantDial},
	}
	for _, tc := range cases {
		got, err := ParseVariant(tc.in)
		if err != nil {
			t.Errorf("ParseVariant(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseVariant(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseVariant_Unknown(t *testing.T) {
	if _, err := ParseVariant("protractor"); err == nil {
		t.Error("expected error for unknown variant")
	}
}

// ---------- Render ----------

func TestRender_DialDefaults(t *testing.T) {
	d := Render(45, Options{Label: "Horizontal", Letter: "H"})
	if d.Variant != VariantDial {
		t.Errorf("variant = %q, want dial", d.Variant)
	}
	if d.Dial == nil || d.Gauge != nil {
		t.Fatal("expected dial geometry only")
	}
	if d.Dial.Size != DefaultSize {
		t.Errorf("size = %v, want %v", d.Dial.Size, DefaultSize)
	}
	if d.Letter != "H" {
		t.Errorf("letter = %q, want H", d.Letter)
	}
	if d.Caption != "Horizontal: 45°" {
		t.Errorf("caption = %q", d.Caption)
	}
	if d.Transition == "" {
		t.Error("dial should carry a transition hint")
	}
}

func TestRender_DialPointerFormula(t *testing.T) {
	for _, angle := range []float64{0, 45, 90, 200, 359, -30, 725} {
		d := Render(angle, Options{Size: 220})
		r, l := 110.0, 90.0
		theta := (angle - 90) * math.Pi / 180
		wx, wy := r+l*math.Cos(theta), r+l*math.Sin(theta)
		if math.Abs(d.Dial.Pointer.X-wx) > 1e-9 || math.Abs(d.Dial.Pointer.Y-wy) > 1e-9 {
			t.Errorf("angle %v: pointer = %+v, want (%v, %v)", angle, d.Dial.Pointer, wx, wy)
		}
	}
}

func TestRender_GaugeDashOffset(t *testing.T) {
	for _, angle := range []float64{0, 90, 360, -45, 450} {
		d := Render(angle, Options{Variant: VariantGauge})
		c := 2 * math.Pi * DefaultGaugeRadius
		want := c * (1 - angle/360)
		if d.Gauge == nil {
			t.Fatal("expected gauge geometry")
		}
		if math.Abs(d.Gauge.DashOffset-want) > 1e-9 {
			t.Errorf("angle %v: offset = %v, want %v", angle, d.Gauge.DashOffset, want)
		}
	}
}

func TestRender_GaugeColorsDefaultAndOverride(t *testing.T) {
	d := Render(10, Options{Variant: VariantGauge})
	if d.Colors.Track != DefaultTrackColor || d.Colors.Progress != DefaultProgressColor {
		t.Errorf("colors = %+v, want defaults", d.Colors)
	}
	d = Render(10, Options{Variant: VariantGauge, Colors: Colors{Track: "#111111", Progress: "#00ff00"}})
	if d.Colors.Track != "#111111" || d.Colors.Progress != "#00ff00" {
		t.Errorf("colors = %+v, want overrides", d.Colors)
	}
}

func TestRender_GaugeRadiusScalesWithSize(t *testing.T) {
	d := Render(0, Options{Variant: VariantGauge, Size: 400})
	if d.Gauge.Radius != 160 {
		t.Errorf("radius = %v, want 160", d.Gauge.Radius)
	}
}

func TestRender_Idempotent(t *testing.T) {
	for _, v := range []Variant{VariantDial, VariantGauge} {
		opts := Options{Variant: v, Label: "V", Letter: "V"}
		if !reflect.DeepEqual(Render(33.3, opts), Render(33.3, opts)) {
			t.Errorf("%s: renders differ for identical inputs", v)
		}
	}
}

func TestRender_FullTurnSameGeometryDifferentCaption(t *testing.T) {
	a := Render(0, Options{Label: "H"})
	b := Render(360, Options{Label: "H"})
	if math.Abs(a.Dial.Pointer.X-b.Dial.Pointer.X) > 1e-9 || math.Abs(a.Dial.Pointer.Y-b.Dial.Pointer.Y) > 1e-9 {
		t.Errorf("pointer differs: %+v vs %+v", a.Dial.Pointer, b.Dial.Pointer)
	}
	if a.Caption == b.Caption {
		t.Errorf("captions should differ, both %q", a.Caption)
	}
}

func TestCaption(t *testing.T) {
	cases := []struct {
		label string
		angle float64
		want  string
	}{
		{"H", 45, "H: 45°"},
		{"Vertical", 12.5, "Vertical: 12.5°"},
		{"", 360, "360°"},
		{"H", -10, "H: -10°"},
	}
	for _, tc := range cases {
		if got := Caption(tc.label, tc.angle); got != tc.want {
			t.Errorf("Caption(%q, %v) = %q, want %q", tc.label, tc.angle, got, tc.want)
		}
	}
}

// ---------- SVG ----------

func TestSVG_Dial(t *testing.T) {
	out, err := Render(90, Options{Label: "H", Letter: "H"}).SVG()
	if err != nil {
		t.Fatalf("SVG: %v", err)
	}
	s := string(out)
	for _, want := range []string{"<svg", `class="pointer"`, "transition: all 0.5s ease-in-out", "H: 90°", ">330<", "</svg>"} {
		if !strings.Contains(s, want) {
			t.Errorf("dial svg missing %q", want)
		}
	}
	if got := strings.Count(s, `class="tick"`); got != 12 {
		t.Errorf("tick groups = %d, want 12", got)
	}
	// pointer at 90° on a 200px dial ends at (180, 100)
	if !strings.Contains(s, `x2="180" y2="100"`) {
		t.Errorf("pointer endpoint not found in svg:\n%s", s)
	}
}

func TestSVG_Gauge(t *testing.T) {
	out, err := Render(180, Options{Variant: VariantGauge, Label: "V"}).SVG()
	if err != nil {
		t.Fatalf("SVG: %v", err)
	}
	s := string(out)
	c := 2 * math.Pi * DefaultGaugeRadius
	for _, want := range []string{
		`class="progress"`,
		`class="needle"`,
		`stroke-dashoffset="` + num(c/2) + `"`,
		`rotate(-90 100 100)`,
		"V: 180°",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("gauge svg missing %q", want)
		}
	}
}

func TestSVG_EscapesLabel(t *testing.T) {
	out, err := Render(0, Options{Label: "<b>&"}).SVG()
	if err != nil {
		t.Fatalf("SVG: %v", err)
	}
	if strings.Contains(string(out), "<b>&") {
		t.Error("caption should be XML-escaped")
	}
}

func TestSVG_EmptyDrawing(t *testing.T) {
	if _, err := (Drawing{}).SVG(); err == nil {
		t.Error("expected error for empty drawing")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteSVG_PropagatesWriteError(t *testing.T) {
	err := Render(0, Options{}).WriteSVG(failingWriter{})
	if err == nil {
		t.Fatal("expected write error")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error = %v, want wrapped write error", err)
	}
}
