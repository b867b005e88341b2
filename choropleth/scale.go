package choropleth

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/zalepa/medicmap/api"
)

// Palette is an ordered list of color stops spread evenly across a scale's
// domain.
type Palette []color.RGBA

var (
	// DefaultPalette is used for topics without a dedicated palette.
	DefaultPalette = Palette{hex("#f7fbff"), hex("#08519c")}

	// HeartPalette runs yellow, orange, red, dark red.
	HeartPalette = Palette{hex("#ffeda0"), hex("#feb24c"), hex("#f03b20"), hex("#bd0026")}

	// StrokePalette runs light to dark purple.
	StrokePalette = Palette{hex("#efedf5"), hex("#bcbddc"), hex("#756bb1"), hex("#54278f")}
)

// PlaceholderMin and PlaceholderMax are the domain used when there are no
// records, so the legend and colors never see an empty range.
const (
	PlaceholderMin = 0
	PlaceholderMax = 100
)

// PaletteFor picks a palette by topic name. "heart" is checked before
// "stroke".
func PaletteFor(topic string) Palette {
	t := strings.ToLower(topic)
	switch {
	case strings.Contains(t, "heart"):
		return HeartPalette
	case strings.Contains(t, "stroke"):
		return StrokePalette
	}
	return DefaultPalette
}

// Scale maps values in [Min, Max] linearly onto a palette.
type Scale struct {
	Palette Palette
	Min     float64
	Max     float64
}

// NewScale builds the scale for one render from the topic and the record
// set's value range.
func NewScale(topic string, records []api.MapDataItem) *Scale {
	min, max := Domain(records)
	return &Scale{Palette: PaletteFor(topic), Min: min, Max: max}
}

// Domain returns the minimum and maximum value over records, or the
// placeholder domain when records is empty.
func Domain(records []api.MapDataItem) (min, max float64) {
	if len(records) == 0 {
		return PlaceholderMin, PlaceholderMax
	}
	min, max = math.Inf(1), math.Inf(-1)
	for _, r := range records {
		if r.Value < min {
			min = r.Value
		}
		if r.Value > max {
			max = r.Value
		}
	}
	return min, max
}

// Color returns the color for v. Values outside the domain are clamped; a
// single-valued domain maps everything to the first stop.
func (s *Scale) Color(v float64) color.RGBA {
	n := len(s.Palette)
	if n == 0 {
		return color.RGBA{A: 255}
	}
	if n == 1 || s.Max <= s.Min {
		return s.Palette[0]
	}

	t := (v - s.Min) / (s.Max - s.Min)
	switch {
	case math.IsNaN(t) || t <= 0:
		return s.Palette[0]
	case t >= 1:
		return s.Palette[n-1]
	}

	pos := t * float64(n-1)
	i := int(pos)
	if i >= n-1 {
		return s.Palette[n-1]
	}
	return lerp(s.Palette[i], s.Palette[i+1], pos-float64(i))
}

// Hex returns Color(v) as "#rrggbb".
func (s *Scale) Hex(v float64) string {
	return Hex(s.Color(v))
}

// Sample returns n colors at equally spaced values from Min to Max.
func (s *Scale) Sample(n int) []color.RGBA {
	out := make([]color.RGBA, n)
	for i := range out {
		g := 0.0
		if n > 1 {
			g = float64(i) / float64(n-1)
		}
		out[i] = s.Color(s.Min + g*(s.Max-s.Min))
	}
	return out
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}

// Hex formats c as "#rrggbb".
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func hex(s string) color.RGBA {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil || len(s) != 7 {
		panic(fmt.Sprintf("choropleth: bad color %q", s))
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
