package anchors

import (
	"math"

	"github.com/MeKo-Tech/detbox/internal/geometry"
)

// SSD generates the prior set for a single-shot layout in normalized
// center form. Enumeration order is fixed: levels in profile order,
// cells row by row, and per cell the base square, the intermediate
// scale square, then each aspect ratio followed by its flipped
// counterpart. Consumers address priors by position, so this order is
// part of the contract.
func SSD(p SSDProfile) ([]geometry.CenterBox, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	img := float64(p.ImageSize)
	boxes := make([]geometry.CenterBox, 0, p.priorCount())
	for level, size := range p.FeatureMapSizes {
		cells := img / float64(p.Steps[level])
		sk := p.MinSizes[level] / img
		skNext := math.Sqrt(sk * (p.MaxSizes[level] / img))
		for y := range size {
			for x := range size {
				cx := (float64(x) + 0.5) / cells
				cy := (float64(y) + 0.5) / cells
				boxes = append(boxes,
					geometry.CenterBox{CX: cx, CY: cy, W: sk, H: sk},
					geometry.CenterBox{CX: cx, CY: cy, W: skNext, H: skNext})
				for _, ar := range p.AspectRatios[level] {
					root := math.Sqrt(ar)
					boxes = append(boxes,
						geometry.CenterBox{CX: cx, CY: cy, W: sk * root, H: sk / root},
						geometry.CenterBox{CX: cx, CY: cy, W: sk / root, H: sk * root})
				}
			}
		}
	}
	return clipUnit(boxes), nil
}

// clipUnit clamps every coordinate into [0, 1]. Widths on the coarse
// levels can exceed the image otherwise.
func clipUnit(boxes []geometry.CenterBox) []geometry.CenterBox {
	for i, b := range boxes {
		boxes[i] = geometry.CenterBox{
			CX: clamp01(b.CX),
			CY: clamp01(b.CY),
			W:  clamp01(b.W),
			H:  clamp01(b.H),
		}
	}
	return boxes
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
