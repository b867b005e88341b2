package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// insets places regions that sit far from the contiguous states into fixed
// boxes of the viewport, given as fractions of width and height with the
// origin at the top left.
var insets = map[string]orb.Bound{
	"AK": {Min: orb.Point{0.0, 0.68}, Max: orb.Point{0.22, 1.0}},
	"HI": {Min: orb.Point{0.23, 0.82}, Max: orb.Point{0.36, 1.0}},
}

// Projection maps longitude/latitude to viewport pixels, y growing down.
// The contiguous states fill the viewport; Alaska and Hawaii are drawn as
// insets in the lower left.
type Projection struct {
	Width, Height float64

	main   frame
	insets map[string]frame
}

// frame is an equirectangular fit of one bound into one pixel box.
type frame struct {
	bound  orb.Bound
	kx     float64 // cos(mid latitude)
	scale  float64
	ox, oy float64
}

func newFrame(b orb.Bound, box orb.Bound) frame {
	mid := (b.Min[1] + b.Max[1]) / 2
	kx := math.Cos(mid * math.Pi / 180)
	w := (b.Max[0] - b.Min[0]) * kx
	h := b.Max[1] - b.Min[1]
	bw := box.Max[0] - box.Min[0]
	bh := box.Max[1] - box.Min[1]

	scale := 1.0
	if w > 0 && h > 0 {
		scale = math.Min(bw/w, bh/h)
	}
	return frame{
		bound: b,
		kx:    kx,
		scale: scale,
		ox:    box.Min[0] + (bw-w*scale)/2,
		oy:    box.Min[1] + (bh-h*scale)/2,
	}
}

func (f frame) project(p orb.Point) (x, y float64) {
	x = f.ox + (p[0]-f.bound.Min[0])*f.kx*f.scale
	y = f.oy + (f.bound.Max[1]-p[1])*f.scale
	return x, y
}

// NewProjection fits regions into a width×height viewport with margin pixels
// on every side.
func NewProjection(regions Regions, width, height, margin float64) *Projection {
	p := &Projection{Width: width, Height: height, insets: make(map[string]frame)}

	inner := orb.Bound{
		Min: orb.Point{margin, margin},
		Max: orb.Point{width - margin, height - margin},
	}
	var main orb.Bound
	first := true
	for _, r := range regions {
		b := shapeBound(r)
		if box, ok := insets[r.Code]; ok {
			px := orb.Bound{
				Min: orb.Point{inner.Min[0] + box.Min[0]*(inner.Max[0]-inner.Min[0]), inner.Min[1] + box.Min[1]*(inner.Max[1]-inner.Min[1])},
				Max: orb.Point{inner.Min[0] + box.Max[0]*(inner.Max[0]-inner.Min[0]), inner.Min[1] + box.Max[1]*(inner.Max[1]-inner.Min[1])},
			}
			p.insets[r.Code] = newFrame(b, px)
			continue
		}
		if first {
			main, first = b, false
		} else {
			main = main.Union(b)
		}
	}
	if first {
		main = orb.Bound{Min: orb.Point{-125, 24}, Max: orb.Point{-66, 50}}
	}
	p.main = newFrame(main, inner)
	return p
}

// Project maps a point of the region with the given code to pixels.
func (p *Projection) Project(code string, pt orb.Point) (x, y float64) {
	if f, ok := p.insets[code]; ok {
		return f.project(unwrap(code, pt))
	}
	return p.main.project(pt)
}

// Ring projects a ring of the region with the given code.
func (p *Projection) Ring(code string, ring orb.Ring) [][2]float64 {
	out := make([][2]float64, len(ring))
	for i, pt := range ring {
		x, y := p.Project(code, pt)
		out[i] = [2]float64{x, y}
	}
	return out
}

// unwrap moves Aleutian points east of the antimeridian next to the rest of
// Alaska.
func unwrap(code string, pt orb.Point) orb.Point {
	if code == "AK" && pt[0] > 0 {
		pt[0] -= 360
	}
	return pt
}

func shapeBound(r Region) orb.Bound {
	first := true
	var b orb.Bound
	for _, poly := range r.Shape {
		for _, ring := range poly {
			for _, pt := range ring {
				pt = unwrap(r.Code, pt)
				if first {
					b = orb.Bound{Min: pt, Max: pt}
					first = false
					continue
				}
				b = b.Extend(pt)
			}
		}
	}
	return b
}
