package targets

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/detbox/internal/geometry"
)

// Variances scale regression offsets during encoding and decoding, in
// order cx, cy, w, h.
type Variances [4]float64

// DefaultVariances returns the scaling used by the stock profiles.
func DefaultVariances() Variances {
	return Variances{0.1, 0.1, 0.2, 0.2}
}

// Validate rejects non-positive variance entries.
func (v Variances) Validate() error {
	for i, value := range v {
		if value <= 0 {
			return fmt.Errorf("variance %d must be positive, got %v", i, value)
		}
	}
	return nil
}

// Encoded is one variance-scaled regression target row.
type Encoded struct {
	DX    float64
	DY    float64
	DW    float64
	DH    float64
	Label int
}

// EncodeBox converts a corner-form box into offsets against a prior.
func EncodeBox(b geometry.Box, prior geometry.CenterBox, v Variances) [4]float64 {
	c := b.Center()
	return [4]float64{
		(c.CX - prior.CX) / prior.W / v[0],
		(c.CY - prior.CY) / prior.H / v[1],
		math.Log(c.W/prior.W) / v[2],
		math.Log(c.H/prior.H) / v[3],
	}
}

// DecodeBox inverts EncodeBox for a single offset row.
func DecodeBox(offsets [4]float64, prior geometry.CenterBox, v Variances) geometry.Box {
	return geometry.CenterBox{
		CX: offsets[0]*v[0]*prior.W + prior.CX,
		CY: offsets[1]*v[1]*prior.H + prior.CY,
		W:  prior.W * math.Exp(offsets[2]*v[2]),
		H:  prior.H * math.Exp(offsets[3]*v[3]),
	}.Corner()
}

// Encode converts match rows into regression targets against their
// priors. Labels pass through untouched. Background rows are encoded
// like any other row so that decoding restores the full match output;
// zero-size rows produce infinite width offsets that decode back to
// zero size.
func Encode(matches []LabeledBox, priors []geometry.CenterBox, v Variances) ([]Encoded, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if len(matches) != len(priors) {
		return nil, fmt.Errorf("match count %d does not equal prior count %d", len(matches), len(priors))
	}
	out := make([]Encoded, len(matches))
	for i, m := range matches {
		offsets := EncodeBox(m.Box, priors[i], v)
		out[i] = Encoded{DX: offsets[0], DY: offsets[1], DW: offsets[2], DH: offsets[3], Label: m.Label}
	}
	return out, nil
}

// Decode inverts Encode given the same priors and variances.
func Decode(rows []Encoded, priors []geometry.CenterBox, v Variances) ([]LabeledBox, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if len(rows) != len(priors) {
		return nil, fmt.Errorf("row count %d does not equal prior count %d", len(rows), len(priors))
	}
	out := make([]LabeledBox, len(rows))
	for i, r := range rows {
		out[i] = LabeledBox{
			Box:   DecodeBox([4]float64{r.DX, r.DY, r.DW, r.DH}, priors[i], v),
			Label: r.Label,
		}
	}
	return out, nil
}
