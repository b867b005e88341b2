// Package explorer holds one viewer's filter selection and the record set on
// display, and orchestrates the option and map-data fetches behind it.
package explorer

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/zalepa/medicmap/api"
	"github.com/zalepa/medicmap/filters"
)

// ErrStale is returned when a fetch completes for a selection that is no
// longer current. Its result is discarded.
var ErrStale = errors.New("stale result discarded")

// Backend is the subset of *api.Client the explorer needs.
type Backend interface {
	FetchOptions(ctx context.Context, topic string) (api.FilterOptions, error)
	FetchMapData(ctx context.Context, sel filters.Selection) ([]api.MapDataItem, error)
}

// State describes what the view currently shows.
type State int

const (
	Incomplete State = iota
	Loading
	Ready
	Failed
	OptionsUnavailable
)

func (s State) String() string {
	switch s {
	case Incomplete:
		return "incomplete"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case OptionsUnavailable:
		return "options-unavailable"
	}
	return "unknown"
}

// View is a point-in-time copy of an Explorer. Records is shared with the
// explorer and must not be modified.
type View struct {
	Selection filters.Selection
	Options   api.FilterOptions
	Records   []api.MapDataItem
	State     State
	Err       error
}

// Explorer is one viewer's session state.
type Explorer struct {
	mu      sync.Mutex
	backend Backend

	sel        filters.Selection
	opts       api.FilterOptions
	optsTopic  string
	haveOpts   bool
	optsErr    error
	records    []api.MapDataItem
	recordsKey string
	state      State
	err        error
}

// New returns an Explorer with an empty selection.
func New(backend Backend) *Explorer {
	return &Explorer{backend: backend}
}

// Select replaces the selection. A topic change invalidates the options;
// any change of the full tuple drops the displayed records.
func (e *Explorer) Select(sel filters.Selection) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sel.Topic != e.sel.Topic {
		e.haveOpts = false
		e.optsErr = nil
	}
	e.sel = sel
	e.dropStale()
}

// dropStale clears records that no longer belong to the selection.
func (e *Explorer) dropStale() {
	if e.sel.Key() == e.recordsKey {
		return
	}
	e.records = nil
	e.recordsKey = ""
	e.err = nil
	e.state = Incomplete
}

// Selection returns the current selection.
func (e *Explorer) Selection() filters.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel
}

// ResolveOptions fetches the options for the current topic and fills unset
// or invalid selection fields from them. If the topic changes while the
// request is in flight the result is dropped and ErrStale returned.
func (e *Explorer) ResolveOptions(ctx context.Context) error {
	e.mu.Lock()
	topic := e.sel.Topic
	e.mu.Unlock()

	opts, err := e.backend.FetchOptions(ctx, topic)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sel.Topic != topic {
		return ErrStale
	}
	if err != nil {
		log.Printf("[explorer] options for topic %q: %v", topic, err)
		e.optsErr = err
		e.haveOpts = false
		return err
	}
	e.opts = opts
	e.optsTopic = topic
	e.haveOpts = true
	e.optsErr = nil
	e.sel = e.sel.ApplyOptions(opts)
	e.dropStale()
	return nil
}

// LoadData fetches the record set for the current selection. An incomplete
// selection issues no request. The result is applied only if the selection
// still has the same key when it arrives.
func (e *Explorer) LoadData(ctx context.Context) error {
	e.mu.Lock()
	sel := e.sel
	if !sel.Ready() {
		e.records = nil
		e.recordsKey = ""
		e.state = Incomplete
		e.err = nil
		if e.optsErr != nil {
			e.state = OptionsUnavailable
			e.err = e.optsErr
		}
		e.mu.Unlock()
		return nil
	}
	e.state = Loading
	e.mu.Unlock()

	records, err := e.backend.FetchMapData(ctx, sel)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sel.Key() != sel.Key() {
		return ErrStale
	}
	if err != nil {
		log.Printf("[explorer] map data for %s: %v", sel.Key(), err)
		e.records = nil
		e.recordsKey = sel.Key()
		e.state = Failed
		e.err = err
		return err
	}
	e.records = records
	e.recordsKey = sel.Key()
	e.state = Ready
	e.err = nil
	return nil
}

// Sync resolves options and then loads data. When applying options chose a
// topic, the options for that topic are fetched before loading.
func (e *Explorer) Sync(ctx context.Context) error {
	e.mu.Lock()
	before := e.sel.Topic
	fresh := e.haveOpts && e.optsTopic == before
	e.mu.Unlock()

	if !fresh {
		err := e.ResolveOptions(ctx)
		if err == nil && e.Selection().Topic != before {
			// A defaulted topic needs its own demographics and indicators.
			err = e.ResolveOptions(ctx)
		}
		if errors.Is(err, ErrStale) {
			return err
		}
	} else {
		e.mu.Lock()
		e.sel = e.sel.ApplyOptions(e.opts)
		e.dropStale()
		e.mu.Unlock()
	}

	e.mu.Lock()
	current := e.state == Ready && e.recordsKey == e.sel.Key()
	e.mu.Unlock()
	if current {
		return nil
	}
	err := e.LoadData(ctx)
	if err == nil {
		e.mu.Lock()
		if e.state == OptionsUnavailable {
			err = e.optsErr
		}
		e.mu.Unlock()
	}
	return err
}

// Snapshot returns the current view.
func (e *Explorer) Snapshot() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := View{
		Selection: e.sel,
		Options:   e.opts,
		Records:   e.records,
		State:     e.state,
		Err:       e.err,
	}
	if !e.haveOpts {
		v.Options = api.FilterOptions{}
	}
	return v
}
