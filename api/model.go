package api

import "github.com/zalepa/medicmap/filters"

// FilterOptions holds the valid topics, years, demographics and indicators
// for one topic, as returned by GET options/.
type FilterOptions = filters.Options

// MapDataItem is one per-state record returned by GET map-data/. Within a
// fetched set, topic, year, demographic and indicator are constant and
// StateAbbr is unique.
type MapDataItem struct {
	ID          int     `json:"id"`
	Year        int     `json:"year"`
	StateAbbr   string  `json:"state_abbr"`
	StateName   string  `json:"state_name"`
	Topic       string  `json:"topic"`
	Indicator   string  `json:"indicator"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Demographic string  `json:"demographic"`
}
