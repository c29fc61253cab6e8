package geometry

import "math"

// GaugeGeometry describes a circular progress gauge with a needle.
type GaugeGeometry struct {
	Size          float64 `json:"size"`
	Radius        float64 `json:"radius"`
	Circumference float64 `json:"circumference"`
	// DashOffset is the stroke-dashoffset of the progress arc:
	// circumference * (1 - angle/360).
	DashOffset float64 `json:"dash_offset"`
	Center     Point   `json:"center"`
	Needle     Point   `json:"needle"`
}

// Gauge computes the gauge geometry for angle. The ring of the given radius is
// centered on a square face of the given size.
func Gauge(angle, size, radius float64) GaugeGeometry {
	center := Point{X: size / 2, Y: size / 2}
	circumference := 2 * math.Pi * radius
	return GaugeGeometry{
		Size:          size,
		Radius:        radius,
		Circumference: circumference,
		DashOffset:    DashOffset(angle, circumference),
		Center:        center,
		Needle:        PolarPoint(center, radius, angle),
	}
}

// DashOffset encodes angle/360 as the visible fraction of a ring.
// Values outside [0, 360) are not clamped.
func DashOffset(angle, circumference float64) float64 {
	return circumference * (1 - angle/360)
}
