package geo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// DefaultURL is the U.S. state boundary collection. Feature ids are the
// two-letter state codes used by the map-data backend.
const DefaultURL = "https://raw.githubusercontent.com/python-visualization/folium/master/examples/data/us-states.json"

// Region is one shaded area of the map.
type Region struct {
	Code  string
	Name  string
	Shape orb.MultiPolygon
}

// Regions is the full boundary collection, sorted by code.
type Regions []Region

// Lookup returns the region with the given code, ignoring case and
// surrounding whitespace.
func (rs Regions) Lookup(code string) (Region, bool) {
	code = NormalizeCode(code)
	i := sort.Search(len(rs), func(i int) bool { return rs[i].Code >= code })
	if i < len(rs) && rs[i].Code == code {
		return rs[i], true
	}
	return Region{}, false
}

// NormalizeCode trims and upper-cases a region code so " tx " joins "TX".
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Parse decodes a GeoJSON FeatureCollection. Each feature must carry its
// region code as the feature id (or a "code" property) and may carry a
// "name" property. Features that are not polygons are skipped.
func Parse(data []byte) (Regions, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing boundaries: %w", err)
	}

	var regions Regions
	seen := make(map[string]bool)
	for i, f := range fc.Features {
		code := ""
		if id, ok := f.ID.(string); ok {
			code = id
		}
		if code == "" {
			code = f.Properties.MustString("code", "")
		}
		code = NormalizeCode(code)
		if code == "" {
			return nil, fmt.Errorf("parsing boundaries: feature %d has no region code", i)
		}
		if seen[code] {
			return nil, fmt.Errorf("parsing boundaries: duplicate region %s", code)
		}

		var shape orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			shape = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			shape = g
		default:
			continue
		}
		seen[code] = true
		regions = append(regions, Region{
			Code:  code,
			Name:  f.Properties.MustString("name", code),
			Shape: shape,
		})
	}

	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Code < regions[j].Code
	})
	return regions, nil
}

// LoadFile reads boundaries from a local GeoJSON file.
func LoadFile(path string) (Regions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Load fetches boundaries from url.
func Load(ctx context.Context, client *http.Client, url string) (Regions, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching boundaries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching boundaries: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading boundaries: %w", err)
	}
	return Parse(data)
}

// LabelPoint returns a point inside or near the region's largest polygon,
// used to place its label.
func (r Region) LabelPoint() orb.Point {
	var best orb.Polygon
	bestArea := -1.0
	for _, p := range r.Shape {
		if a := planar.Area(p); a > bestArea {
			best, bestArea = p, a
		}
	}
	if best == nil {
		return orb.Point{}
	}
	c, _ := planar.CentroidArea(best)
	return c
}
