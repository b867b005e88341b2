package explorer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zalepa/medicmap/choropleth"
	"github.com/zalepa/medicmap/geo"
)

// Session is one browser's explorer together with its map surface.
type Session struct {
	ID string
	*Explorer
	Renderer *choropleth.Renderer

	lastSeen time.Time
}

// Render draws v through the session's renderer. hover names a region to
// draw with the hover style, or is empty.
func (s *Session) Render(v View, hover string, draw func(*choropleth.Layer) error) error {
	return s.Renderer.Render(v.Selection, v.Records, hover, draw)
}

// Sessions is an in-memory registry of sessions keyed by id.
type Sessions struct {
	mu      sync.Mutex
	backend Backend
	regions geo.Regions
	ttl     time.Duration
	now     func() time.Time
	byID    map[string]*Session
}

// NewSessions returns an empty registry. Sessions idle for longer than ttl
// are dropped; a zero ttl keeps them forever.
func NewSessions(backend Backend, regions geo.Regions, ttl time.Duration) *Sessions {
	return &Sessions{
		backend: backend,
		regions: regions,
		ttl:     ttl,
		now:     time.Now,
		byID:    make(map[string]*Session),
	}
}

// Get returns the session for id, creating a new one when id is unknown or
// expired. The returned bool reports whether the session was created.
func (ss *Sessions) Get(id string) (*Session, bool, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := ss.now()
	ss.prune(now)
	if s, ok := ss.byID[id]; ok {
		s.lastSeen = now
		return s, false, nil
	}

	uid, err := uuid.NewV7()
	if err != nil {
		return nil, false, fmt.Errorf("session id: %w", err)
	}
	s := &Session{
		ID:       uid.String(),
		Explorer: New(ss.backend),
		Renderer: choropleth.NewRenderer(ss.regions),
		lastSeen: now,
	}
	ss.byID[s.ID] = s
	return s, true, nil
}

// Len returns the number of live sessions.
func (ss *Sessions) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.byID)
}

func (ss *Sessions) prune(now time.Time) {
	if ss.ttl <= 0 {
		return
	}
	for id, s := range ss.byID {
		if now.Sub(s.lastSeen) > ss.ttl {
			s.Renderer.Close()
			delete(ss.byID, id)
		}
	}
}
