package choropleth

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"

	"github.com/zalepa/medicmap/geo"
)

// SVGOptions controls WriteSVG.
type SVGOptions struct {
	Width, Height int
	// Labels draws the region label overlay above the shapes.
	Labels bool
}

// DefaultSVGOptions is a 960×600 map with labels.
var DefaultSVGOptions = SVGOptions{Width: 960, Height: 600, Labels: true}

const (
	baseFill   = "#f4f4f5"
	labelColor = "#3f3f46"
	mapMargin  = 10
)

// hoverCSS mirrors HoverStyle for viewers that only get the static SVG.
const hoverCSS = `
.region path { transition: stroke-width .1s; }
.region:hover path { stroke: #ffffff; stroke-width: 2; stroke-dasharray: none; fill-opacity: 0.9; }
#labels { pointer-events: none; }
`

// raiseOnEnter moves the hovered region group to the end of its parent so it
// draws above its neighbours.
const raiseOnEnter = `onmouseenter="this.parentNode.appendChild(this)"`

// WriteSVG writes the layer as a standalone interactive SVG document: one
// group per region with a tooltip title, a label overlay and the legend.
func WriteSVG(w io.Writer, l *Layer, opts SVGOptions) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("invalid svg size %dx%d", opts.Width, opts.Height)
	}
	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(opts.Width, opts.Height, `viewBox="0 0 `+strconv.Itoa(opts.Width)+" "+strconv.Itoa(opts.Height)+`"`)
	canvas.Style("text/css", hoverCSS)

	legend := l.Legend()
	if legend != nil {
		canvas.Def()
		offs := make([]svg.Offcolor, len(legend.Stops))
		for i, c := range legend.Stops {
			offs[i] = svg.Offcolor{Offset: uint8(i * 100 / (len(legend.Stops) - 1)), Color: c, Opacity: 1}
		}
		canvas.LinearGradient("legend-gradient", 0, 0, 100, 0, offs)
		canvas.DefEnd()
	}

	canvas.Rect(0, 0, opts.Width, opts.Height, "fill:"+baseFill)

	proj := geo.NewProjection(l.Regions, float64(opts.Width), float64(opts.Height), mapMargin)
	canvas.Gid("regions")
	for _, code := range l.Order() {
		r, ok := l.Regions.Lookup(code)
		if !ok {
			continue
		}
		st := l.Style(code)
		canvas.Group(`class="region"`, `data-code="`+code+`"`, raiseOnEnter)
		canvas.Title(l.Tooltip(r))
		canvas.Path(pathData(proj, r), styleAttr(st))
		canvas.Gend()
	}
	canvas.Gend()

	if opts.Labels {
		canvas.Gid("labels")
		for _, r := range l.Regions {
			x, y := proj.Project(r.Code, r.LabelPoint())
			canvas.Text(int(x), int(y), r.Code, "font-family:sans-serif;font-size:9px;text-anchor:middle;fill:"+labelColor)
		}
		canvas.Gend()
	}

	if legend != nil {
		writeLegend(canvas, legend, opts)
	}

	canvas.End()
	return ew.err
}

func writeLegend(canvas *svg.SVG, lg *Legend, opts SVGOptions) {
	const bw, bh = 180, 62
	x := opts.Width - bw - 16
	y := opts.Height - bh - 16
	canvas.Gid("legend")
	canvas.Roundrect(x, y, bw, bh, 6, 6, "fill:#ffffff;fill-opacity:0.9;stroke:#e4e4e7")
	canvas.Text(x+12, y+18, lg.Title, "font-family:sans-serif;font-size:11px;font-weight:bold;fill:#18181b")
	canvas.Roundrect(x+12, y+26, bw-24, 10, 2, 2, "fill:url(#legend-gradient)")
	canvas.Text(x+12, y+52, lg.MinLabel, "font-family:sans-serif;font-size:10px;fill:#3f3f46")
	canvas.Text(x+bw-12, y+52, lg.MaxLabel, "font-family:sans-serif;font-size:10px;text-anchor:end;fill:#3f3f46")
	canvas.Gend()
}

func pathData(proj *geo.Projection, r geo.Region) string {
	var sb strings.Builder
	for _, poly := range r.Shape {
		for _, ring := range poly {
			for i, pt := range proj.Ring(r.Code, ring) {
				if i == 0 {
					sb.WriteString("M")
				} else {
					sb.WriteString("L")
				}
				sb.WriteString(strconv.FormatFloat(pt[0], 'f', 1, 64))
				sb.WriteByte(' ')
				sb.WriteString(strconv.FormatFloat(pt[1], 'f', 1, 64))
			}
			sb.WriteString("Z")
		}
	}
	return sb.String()
}

func styleAttr(s Style) string {
	parts := []string{
		"fill:" + s.Fill,
		"fill-opacity:" + strconv.FormatFloat(s.FillOpacity, 'f', -1, 64),
		"stroke:" + s.Stroke,
		"stroke-width:" + strconv.FormatFloat(s.Weight, 'f', -1, 64),
	}
	if s.Dash != "" {
		parts = append(parts, "stroke-dasharray:"+s.Dash)
	}
	return strings.Join(parts, ";")
}

// errWriter keeps the first write error; svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return len(p), nil
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
