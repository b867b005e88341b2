package choropleth

import (
	"sync"

	"github.com/zalepa/medicmap/api"
	"github.com/zalepa/medicmap/filters"
	"github.com/zalepa/medicmap/geo"
)

// Renderer owns the map surface for one viewer. It keeps at most one Layer
// and replaces it wholesale whenever the selection key or the record set
// changes, so interaction state never outlives the data it was built from.
type Renderer struct {
	mu      sync.Mutex
	regions geo.Regions
	layer   *Layer
	builds  int
}

// NewRenderer returns a Renderer over the given boundaries. regions may be
// empty when boundaries failed to load; layers then have nothing to shade.
func NewRenderer(regions geo.Regions) *Renderer {
	return &Renderer{regions: regions}
}

// Update makes the layer for sel and records current and returns it.
func (r *Renderer) Update(sel filters.Selection, records []api.MapDataItem) *Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(sel, records)
}

// Render makes the layer for sel and records current and hands it to draw
// while holding the renderer. When hover is non-empty that region is
// entered before draw and left again afterwards.
func (r *Renderer) Render(sel filters.Selection, records []api.MapDataItem, hover string, draw func(*Layer) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.update(sel, records)
	if hover != "" {
		l.PointerEnter(geo.NormalizeCode(hover))
		defer l.PointerLeave(geo.NormalizeCode(hover))
	}
	return draw(l)
}

func (r *Renderer) update(sel filters.Selection, records []api.MapDataItem) *Layer {
	if r.layer != nil && r.layer.Key() == sel.Key() && sameRecords(r.layer.Records, records) {
		return r.layer
	}
	r.layer = NewLayer(sel, r.regions, records)
	r.builds++
	return r.layer
}

// Close tears down the layer.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layer = nil
}

func sameRecords(a, b []api.MapDataItem) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}
