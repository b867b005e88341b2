package report

import (
	"fmt"
	"image/color"
	"os"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"

	"github.com/zalepa/medicmap/choropleth"
	"github.com/zalepa/medicmap/filters"
)

const (
	pageWidth  = 8.5 * vg.Inch
	pageHeight = 11 * vg.Inch
	pdfMargin  = 0.75 * vg.Inch
)

var (
	chartBlue = color.RGBA{R: 59, G: 130, B: 246, A: 255}
	highRed   = color.RGBA{R: 185, G: 28, B: 28, A: 255}
	lowGreen  = color.RGBA{R: 4, G: 120, B: 87, A: 255}
)

// WritePDF writes the report to path. The first page holds the statistics;
// when layer has regions a second page shows the map with its legend. st
// may be nil, in which case the first page carries NoDataMessage.
func WritePDF(path string, sel filters.Selection, layer *choropleth.Layer, st *Stats) error {
	c := vgpdf.New(pageWidth, pageHeight)
	drawSummaryPage(c, sel, st)

	if layer != nil && len(layer.Regions) > 0 {
		c.NextPage()
		drawMapPage(c, layer)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// pdfText swaps glyphs the embedded Liberation font lacks.
func pdfText(s string) string {
	s = strings.ReplaceAll(s, "—", "-")
	s = strings.ReplaceAll(s, "–", "-")
	return strings.ReplaceAll(s, "•", "|")
}

func drawSummaryPage(c *vgpdf.Canvas, sel filters.Selection, st *Stats) {
	dc := draw.New(c)
	area := draw.Crop(dc, pdfMargin, -pdfMargin, pdfMargin, -pdfMargin)

	y := area.Max.Y - vg.Points(18)
	fillText(area, Title, vg.Points(18), area.Min.X, y, color.Black)
	y -= 0.3 * vg.Inch
	fillText(area, pdfText(Subtitle(sel)), vg.Points(10), area.Min.X, y, color.Gray{Y: 100})
	y -= 0.2 * vg.Inch
	strokeHLine(area, area.Min.X, area.Max.X, y, color.Gray{Y: 180})

	if st == nil {
		fillText(area, NoDataMessage, vg.Points(11), area.Min.X, y-0.5*vg.Inch, color.Gray{Y: 100})
		return
	}

	colW := (area.Max.X - area.Min.X) / 3
	y -= 0.4 * vg.Inch
	metric := func(col int, label, value, detail string, clr color.Color) {
		x := area.Min.X + vg.Length(col)*colW
		fillText(area, label, vg.Points(9), x, y, clr)
		fillText(area, pdfText(value), vg.Points(13), x, y-vg.Points(16), color.Black)
		fillText(area, pdfText(detail), vg.Points(9), x, y-vg.Points(29), color.Gray{Y: 90})
	}
	metric(0, "Average Value", FormatAverage(st.Average), st.Unit, chartBlue)
	metric(1, "Highest State", st.Max.StateName, choropleth.FormatValue(st.Max.Value)+" "+st.Unit, highRed)
	metric(2, "Lowest State", st.Min.StateName, choropleth.FormatValue(st.Min.Value)+" "+st.Unit, lowGreen)
	y -= 0.75 * vg.Inch

	if sel.Indicator != "" {
		fillText(area, "Measured Indicator", vg.Points(10), area.Min.X, y, color.Black)
		y -= vg.Points(14)
		fillText(area, pdfText(sel.Indicator), vg.Points(9), area.Min.X, y, color.Gray{Y: 80})
		y -= 0.35 * vg.Inch
	}

	fillText(area, fmt.Sprintf("Top %d Regions", TopN), vg.Points(12), area.Min.X, y, color.Black)
	y -= vg.Points(18)
	rankX, stateX := area.Min.X, area.Min.X+0.6*vg.Inch
	valueX := area.Min.X + 3.6*vg.Inch
	fillText(area, "Rank", vg.Points(9), rankX, y, color.Gray{Y: 80})
	fillText(area, "State", vg.Points(9), stateX, y, color.Gray{Y: 80})
	fillText(area, pdfText("Value ("+st.Unit+")"), vg.Points(9), valueX, y, color.Gray{Y: 80})
	strokeHLine(area, area.Min.X, area.Max.X, y-vg.Points(5), color.Gray{Y: 180})
	y -= vg.Points(8)

	const rowHeight = 0.28 * vg.Inch
	for i, r := range st.Top {
		y -= rowHeight
		fillText(area, fmt.Sprintf("#%d", i+1), vg.Points(9), rankX, y, color.Gray{Y: 100})
		fillText(area, pdfText(r.StateName), vg.Points(9), stateX, y, color.Black)
		fillText(area, choropleth.FormatValue(r.Value), vg.Points(9), valueX, y, color.Black)
	}
	y -= 0.4 * vg.Inch

	chart := draw.Canvas{
		Canvas: area.Canvas,
		Rectangle: vg.Rectangle{
			Min: vg.Point{X: area.Min.X, Y: area.Min.Y},
			Max: vg.Point{X: area.Max.X, Y: y},
		},
	}
	drawTopChart(chart, st)
}

func drawTopChart(c draw.Canvas, st *Stats) {
	if len(st.Top) == 0 || c.Max.Y-c.Min.Y < 1.5*vg.Inch {
		return
	}
	values := make(plotter.Values, len(st.Top))
	names := make([]string, len(st.Top))
	for i, r := range st.Top {
		values[i] = r.Value
		names[i] = pdfText(r.StateName)
	}

	p := plot.New()
	p.Title.Text = pdfText(fmt.Sprintf("Top %d (%s)", TopN, st.Unit))
	p.Title.TextStyle.Font.Size = vg.Points(11)
	p.BackgroundColor = color.White

	bars, err := plotter.NewBarChart(values, vg.Points(28))
	if err != nil {
		return
	}
	bars.Color = chartBlue
	bars.LineStyle.Width = 0
	p.Add(bars, plotter.NewGrid())
	p.NominalX(names...)
	p.Y.Min = 0

	p.Draw(c)
}

func drawMapPage(c *vgpdf.Canvas, layer *choropleth.Layer) {
	dc := draw.New(c)
	area := draw.Crop(dc, pdfMargin, -pdfMargin, pdfMargin, -pdfMargin)

	top := area.Max.Y - vg.Points(14)
	fillText(area, pdfText(layer.IndicatorLabel()), vg.Points(12), area.Min.X, top, color.Black)
	fillText(area, pdfText(Subtitle(layer.Selection)), vg.Points(9), area.Min.X, top-vg.Points(14), color.Gray{Y: 100})

	// 8:5 map box under the heading.
	w := area.Max.X - area.Min.X
	h := w * 5 / 8
	mapTop := top - 0.4*vg.Inch
	mapArea := draw.Canvas{
		Canvas: area.Canvas,
		Rectangle: vg.Rectangle{
			Min: vg.Point{X: area.Min.X, Y: mapTop - h},
			Max: vg.Point{X: area.Max.X, Y: mapTop},
		},
	}
	choropleth.Draw(mapArea, layer, true)
}

func fillText(c draw.Canvas, txt string, size vg.Length, x, y vg.Length, clr color.Color) {
	sty := draw.TextStyle{
		Color:   clr,
		Font:    plot.DefaultFont,
		Handler: plot.DefaultTextHandler,
	}
	sty.Font.Size = size
	c.FillText(sty, vg.Point{X: x, Y: y}, txt)
}

func strokeHLine(c draw.Canvas, x0, x1, y vg.Length, clr color.Color) {
	c.StrokeLine2(draw.LineStyle{
		Color: clr,
		Width: vg.Points(0.5),
	}, x0, y, x1, y)
}
