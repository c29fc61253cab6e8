package turntable

import (
	"encoding/json"
	"fmt"
	"math"
)

// statusPayload is the schema of GET /status. Every key is optional so that
// a missing field can be told apart from a zero angle.
type statusPayload struct {
	Horizontal      *float64 `json:"horizontal"`
	Vertical        *float64 `json:"vertical"`
	HorizontalAngle *float64 `json:"horizontal_angle"`
	VerticalAngle   *float64 `json:"vertical_angle"`
}

// DecodeStatus parses and validates a /status body under the given naming.
// Any mismatch is reported as ErrMalformedResponse.
func DecodeStatus(body []byte, naming FieldNaming) (Reading, error) {
	var p statusPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Reading{}, fmt.Errorf("%w: decode status: %v", ErrMalformedResponse, err)
	}

	var h, v *float64
	switch naming {
	case NamingPlain:
		h, v = p.Horizontal, p.Vertical
	case NamingSuffixed:
		h, v = p.HorizontalAngle, p.VerticalAngle
	default:
		if p.Horizontal != nil && p.Vertical != nil {
			h, v = p.Horizontal, p.Vertical
		} else {
			h, v = p.HorizontalAngle, p.VerticalAngle
		}
	}

	if h == nil || v == nil {
		return Reading{}, fmt.Errorf("%w: status is missing %s angle fields", ErrMalformedResponse, naming)
	}
	if !finite(*h) || !finite(*v) {
		return Reading{}, fmt.Errorf("%w: status angles must be finite numbers", ErrMalformedResponse)
	}
	return Reading{Horizontal: *h, Vertical: *v}, nil
}

// EncodeStatus renders a reading with the keys of the given naming.
// NamingAuto encodes as plain.
func EncodeStatus(r Reading, naming FieldNaming) map[string]float64 {
	if naming == NamingSuffixed {
		return map[string]float64{"horizontal_angle": r.Horizontal, "vertical_angle": r.Vertical}
	}
	return map[string]float64{"horizontal": r.Horizontal, "vertical": r.Vertical}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
