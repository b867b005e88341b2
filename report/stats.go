package report

import (
	"sort"

	"github.com/zalepa/medicmap/api"
)

// TopN is the length of the ranking in a report.
const TopN = 5

// Stats summarizes one displayed record set.
type Stats struct {
	Average float64
	Max     api.MapDataItem
	Min     api.MapDataItem
	Top     []api.MapDataItem
	Count   int
	Unit    string
}

// Summarize computes report statistics over records. It returns nil for an
// empty set. Ties for max, min and ranking go to the record that comes first
// in records.
func Summarize(records []api.MapDataItem) *Stats {
	if len(records) == 0 {
		return nil
	}

	st := &Stats{
		Max:   records[0],
		Min:   records[0],
		Count: len(records),
		Unit:  records[0].Unit,
	}
	sum := 0.0
	for _, r := range records {
		sum += r.Value
		if r.Value > st.Max.Value {
			st.Max = r
		}
		if r.Value < st.Min.Value {
			st.Min = r
		}
	}
	st.Average = sum / float64(len(records))

	ranked := append([]api.MapDataItem(nil), records...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value > ranked[j].Value
	})
	if len(ranked) > TopN {
		ranked = ranked[:TopN]
	}
	st.Top = ranked
	return st
}
