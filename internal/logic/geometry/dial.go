package geometry

import "math"

// TickSpacingDeg is the angular distance between two dial tick marks.
const TickSpacingDeg = 30

// Point is a position in drawing coordinates (origin top-left, y down).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Tick is one graduation of the dial face.
type Tick struct {
	Value int   `json:"value"` // degrees printed next to the mark
	Outer Point `json:"outer"`
	Inner Point `json:"inner"`
	Label Point `json:"label"`
}

// DialGeometry describes a dial face with its pointer for a given angle.
type DialGeometry struct {
	Size          float64 `json:"size"`
	Radius        float64 `json:"radius"`
	PointerLength float64 `json:"pointer_length"`
	RingRadius    float64 `json:"ring_radius"`
	DiscRadius    float64 `json:"disc_radius"`
	Center        Point   `json:"center"`
	Pointer       Point   `json:"pointer"`
	Ticks         []Tick  `json:"ticks"`
}

// Radians converts a dial angle to the trigonometric angle used for drawing.
// 0° maps to "up" and angles grow clockwise.
func Radians(angleDeg float64) float64 {
	return (angleDeg - 90) * math.Pi / 180
}

// PolarPoint returns the point at distance r from center in the direction of angleDeg.
func PolarPoint(center Point, r, angleDeg float64) Point {
	theta := Radians(angleDeg)
	return Point{
		X: center.X + r*math.Cos(theta),
		Y: center.Y + r*math.Sin(theta),
	}
}

// Dial computes the dial geometry for angle on a square face of the given size.
// The angle is used as-is: no clamping, no modulo reduction.
func Dial(angle, size float64) DialGeometry {
	radius := size / 2
	center := Point{X: radius, Y: radius}

	ticks := make([]Tick, 0, 360/TickSpacingDeg)
	for v := 0; v < 360; v += TickSpacingDeg {
		a := float64(v)
		ticks = append(ticks, Tick{
			Value: v,
			Outer: PolarPoint(center, radius-10, a),
			Inner: PolarPoint(center, radius-20, a),
			Label: PolarPoint(center, radius-35, a),
		})
	}

	pointerLength := radius - 20
	return DialGeometry{
		Size:          size,
		Radius:        radius,
		PointerLength: pointerLength,
		RingRadius:    radius - 2,
		DiscRadius:    radius - 5,
		Center:        center,
		Pointer:       PolarPoint(center, pointerLength, angle),
		Ticks:         ticks,
	}
}
