package choropleth

import (
	"math"
	"strconv"
)

// Legend returns the overlay matching this layer's scale, or nil when the
// layer has no records.
func (l *Layer) Legend() *Legend {
	if len(l.Records) == 0 {
		return nil
	}
	return NewLegend(l.Scale, l.Unit)
}

// Legend is the gradient overlay drawn over the map.
type Legend struct {
	Title    string
	Stops    []string
	Min, Max float64
	MinLabel string
	MaxLabel string
}

// LegendStops is the number of gradient samples across the domain.
const LegendStops = 6

// NewLegend samples scale at LegendStops equally spaced values. The labels
// are the domain ends rounded to integers.
func NewLegend(scale *Scale, unit string) *Legend {
	lg := &Legend{
		Title:    unit,
		Min:      scale.Min,
		Max:      scale.Max,
		MinLabel: roundLabel(scale.Min),
		MaxLabel: roundLabel(scale.Max),
	}
	for _, c := range scale.Sample(LegendStops) {
		lg.Stops = append(lg.Stops, Hex(c))
	}
	return lg
}

func roundLabel(v float64) string {
	// Adding zero turns -0 into 0.
	return strconv.FormatFloat(math.Round(v)+0, 'f', 0, 64)
}
