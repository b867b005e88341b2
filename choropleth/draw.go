package choropleth

import (
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/zalepa/medicmap/geo"
)

var (
	baseFillColor  = color.RGBA{R: 0xf4, G: 0xf4, B: 0xf5, A: 255}
	legendBoxColor = color.RGBA{R: 255, G: 255, B: 255, A: 230}
)

// Draw paints the layer onto a gonum/plot canvas, filling c's rectangle.
// It is the static counterpart of WriteSVG used for PNG and PDF output and
// paints each region with its current Style.
func Draw(c draw.Canvas, l *Layer, labels bool) {
	w := float64(c.Max.X - c.Min.X)
	h := float64(c.Max.Y - c.Min.Y)
	c.FillPolygon(baseFillColor, rect(c.Min.X, c.Min.Y, c.Max.X, c.Max.Y))

	proj := geo.NewProjection(l.Regions, w, h, mapMargin)
	toCanvas := func(p [2]float64) vg.Point {
		return vg.Point{X: c.Min.X + vg.Length(p[0]), Y: c.Max.Y - vg.Length(p[1])}
	}

	for _, code := range l.Order() {
		r, ok := l.Regions.Lookup(code)
		if !ok {
			continue
		}
		st := l.Style(code)
		fill := withOpacity(hex(st.Fill), st.FillOpacity)
		border := draw.LineStyle{
			Color:  hex(st.Stroke),
			Width:  vg.Points(st.Weight),
			Dashes: dashes(st.Dash),
		}
		for _, poly := range r.Shape {
			for i, ring := range poly {
				pts := make([]vg.Point, 0, len(ring))
				for _, p := range proj.Ring(r.Code, ring) {
					pts = append(pts, toCanvas(p))
				}
				// Inner rings are holes; paint them with the background.
				if i == 0 {
					c.FillPolygon(fill, pts)
				} else {
					c.FillPolygon(baseFillColor, pts)
				}
				c.StrokeLines(border, pts)
			}
		}
	}

	if labels {
		sty := textStyle(vg.Points(5), color.RGBA{R: 0x3f, G: 0x3f, B: 0x46, A: 255})
		sty.XAlign = draw.XCenter
		sty.YAlign = draw.YCenter
		for _, r := range l.Regions {
			x, y := proj.Project(r.Code, r.LabelPoint())
			c.FillText(sty, toCanvas([2]float64{x, y}), r.Code)
		}
	}

	if lg := l.Legend(); lg != nil {
		drawLegend(c, lg)
	}
}

func withOpacity(c color.RGBA, opacity float64) color.NRGBA {
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(opacity * 255))}
}

// dashes turns an SVG dash array such as "3" or "4,2" into gonum dashes.
// A single length repeats as on and off.
func dashes(s string) []vg.Length {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	var out []vg.Length
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || v <= 0 {
			return nil
		}
		out = append(out, vg.Points(v))
	}
	if len(out) == 1 {
		out = append(out, out[0])
	}
	return out
}

// stopColor interpolates the legend stops at g in [0,1].
func stopColor(stops []string, g float64) color.RGBA {
	switch len(stops) {
	case 0:
		return baseFillColor
	case 1:
		return hex(stops[0])
	}
	pos := g * float64(len(stops)-1)
	i := int(pos)
	if i >= len(stops)-1 {
		return hex(stops[len(stops)-1])
	}
	return lerp(hex(stops[i]), hex(stops[i+1]), pos-float64(i))
}

func drawLegend(c draw.Canvas, lg *Legend) {
	const steps = 60
	bw, bh := vg.Points(130), vg.Points(42)
	x0 := c.Max.X - bw - vg.Points(8)
	y0 := c.Min.Y + vg.Points(8)
	c.FillPolygon(legendBoxColor, rect(x0, y0, x0+bw, y0+bh))

	pad := vg.Points(8)
	barW := bw - 2*pad
	barY := y0 + vg.Points(16)
	for i := 0; i < steps; i++ {
		clr := stopColor(lg.Stops, float64(i)/float64(steps-1))
		xa := x0 + pad + barW*vg.Length(i)/steps
		xb := x0 + pad + barW*vg.Length(i+1)/steps
		c.FillPolygon(clr, rect(xa, barY, xb, barY+vg.Points(7)))
	}

	title := textStyle(vg.Points(7), color.Black)
	c.FillText(title, vg.Point{X: x0 + pad, Y: y0 + bh - vg.Points(10)}, lg.Title)

	label := textStyle(vg.Points(6), color.Gray{Y: 60})
	c.FillText(label, vg.Point{X: x0 + pad, Y: y0 + vg.Points(5)}, lg.MinLabel)
	label.XAlign = draw.XRight
	c.FillText(label, vg.Point{X: x0 + bw - pad, Y: y0 + vg.Points(5)}, lg.MaxLabel)
}

func rect(x0, y0, x1, y1 vg.Length) []vg.Point {
	return []vg.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func textStyle(size vg.Length, clr color.Color) draw.TextStyle {
	sty := draw.TextStyle{
		Color:   clr,
		Font:    plot.DefaultFont,
		Handler: plot.DefaultTextHandler,
	}
	sty.Font.Size = size
	return sty
}

// WritePNG rasterizes the layer to a width×height PNG.
func WritePNG(w io.Writer, l *Layer, width, height vg.Length, labels bool) error {
	img := vgimg.New(width, height)
	Draw(draw.New(img), l, labels)
	_, err := vgimg.PngCanvas{Canvas: img}.WriteTo(w)
	return err
}
