package anchors

import (
	"math"

	"github.com/MeKo-Tech/detbox/internal/geometry"
)

// EfficientDet generates octave anchors over a feature pyramid in
// normalized center form. Each cell carries NumScales octaves times
// len(AspectRatios) anchors. Anchors are not clipped; coarse levels
// extend past the unit square while their centers stay inside it.
func EfficientDet(p EfficientDetProfile) ([]geometry.CenterBox, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	img := float64(p.ImageSize)
	boxes := make([]geometry.CenterBox, 0, p.priorCount())
	for level := p.MinLevel; level <= p.MaxLevel; level++ {
		stride := float64(int(1) << level)
		cells := p.ImageSize / (1 << level)
		for y := range cells {
			for x := range cells {
				cx := (float64(x) + 0.5) * stride / img
				cy := (float64(y) + 0.5) * stride / img
				for octave := range p.NumScales {
					scale := math.Pow(2, float64(octave)/float64(p.NumScales))
					base := p.AnchorScale * stride * scale / img
					for _, ar := range p.AspectRatios {
						root := math.Sqrt(ar)
						boxes = append(boxes, geometry.CenterBox{
							CX: cx,
							CY: cy,
							W:  base * root,
							H:  base / root,
						})
					}
				}
			}
		}
	}
	return boxes, nil
}
