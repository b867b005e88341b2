package choropleth

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/zalepa/medicmap/api"
	"github.com/zalepa/medicmap/filters"
	"github.com/zalepa/medicmap/geo"
)

// NoDataFill is the fill of a region without a record.
const NoDataFill = "#ececec"

// Style is how one region is painted.
type Style struct {
	Fill        string
	Stroke      string
	Weight      float64
	Dash        string
	FillOpacity float64
}

// HoverStyle is applied on pointer enter, over the region's fill.
func HoverStyle(base Style) Style {
	base.Weight = 2
	base.Stroke = "#ffffff"
	base.Dash = ""
	base.FillOpacity = 0.9
	return base
}

// Join maps normalized region codes to records.
type Join map[string]api.MapDataItem

// NewJoin indexes records by state code. Codes are trimmed and upper-cased.
func NewJoin(records []api.MapDataItem) Join {
	j := make(Join, len(records))
	for _, r := range records {
		j[geo.NormalizeCode(r.StateAbbr)] = r
	}
	return j
}

// Lookup returns the record joined to a region code.
func (j Join) Lookup(code string) (api.MapDataItem, bool) {
	r, ok := j[geo.NormalizeCode(code)]
	return r, ok
}

// Layer is one complete render of the shaded regions for a selection. It is
// never patched: a new selection or record set gets a new Layer.
type Layer struct {
	Selection filters.Selection
	Regions   geo.Regions
	Records   []api.MapDataItem
	Scale     *Scale
	Join      Join
	Unit      string

	styles map[string]Style
	order  []string
}

// NewLayer joins records to regions and derives the color scale.
func NewLayer(sel filters.Selection, regions geo.Regions, records []api.MapDataItem) *Layer {
	l := &Layer{
		Selection: sel,
		Regions:   regions,
		Records:   records,
		Scale:     NewScale(sel.Topic, records),
		Join:      NewJoin(records),
		styles:    make(map[string]Style, len(regions)),
		order:     make([]string, 0, len(regions)),
	}
	for _, r := range records {
		if r.Unit != "" {
			l.Unit = r.Unit
			break
		}
	}
	for _, r := range regions {
		l.styles[r.Code] = l.baseStyle(r.Code)
		l.order = append(l.order, r.Code)
	}
	return l
}

// Key is the layer's identity: the selection it was built for.
func (l *Layer) Key() string {
	return l.Selection.Key()
}

// baseStyle computes a region's resting style from the join and scale.
func (l *Layer) baseStyle(code string) Style {
	s := Style{
		Fill:        NoDataFill,
		Stroke:      "#ffffff",
		Weight:      1,
		Dash:        "3",
		FillOpacity: 0.9,
	}
	if rec, ok := l.Join.Lookup(code); ok {
		s.Fill = l.Scale.Hex(rec.Value)
	}
	return s
}

// Style returns the region's current style.
func (l *Layer) Style(code string) Style {
	if s, ok := l.styles[code]; ok {
		return s
	}
	return l.baseStyle(code)
}

// Order returns region codes in draw order, last drawn on top.
func (l *Layer) Order() []string {
	return append([]string(nil), l.order...)
}

// PointerEnter emphasizes a region and brings it to the top.
func (l *Layer) PointerEnter(code string) {
	if _, ok := l.styles[code]; !ok {
		return
	}
	l.styles[code] = HoverStyle(l.styles[code])
	for i, c := range l.order {
		if c == code {
			l.order = append(append(l.order[:i:i], l.order[i+1:]...), code)
			break
		}
	}
}

// PointerLeave restores a region's style, recomputed from this layer's join
// and scale rather than a copy saved on enter.
func (l *Layer) PointerLeave(code string) {
	if _, ok := l.styles[code]; !ok {
		return
	}
	l.styles[code] = l.baseStyle(code)
}

var printer = message.NewPrinter(language.English)

// FormatValue renders v with grouping and up to three fraction digits.
func FormatValue(v float64) string {
	return printer.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}

// IndicatorLabel is the human label for the layer's indicator, falling back
// to the topic when no indicator is selected.
func (l *Layer) IndicatorLabel() string {
	if l.Selection.Indicator != "" {
		return l.Selection.Indicator
	}
	for _, r := range l.Records {
		if r.Indicator != "" {
			return r.Indicator
		}
	}
	return l.Selection.Topic
}

// Tooltip is the text shown for a region.
func (l *Layer) Tooltip(r geo.Region) string {
	rec, ok := l.Join.Lookup(r.Code)
	if !ok {
		return r.Name + ": No Data"
	}
	var sb strings.Builder
	sb.WriteString(r.Name)
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s: %s", l.IndicatorLabel(), FormatValue(rec.Value))
	if rec.Unit != "" {
		sb.WriteString(" ")
		sb.WriteString(rec.Unit)
	}
	return sb.String()
}
