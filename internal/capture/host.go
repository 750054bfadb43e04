package capture

import (
	"sync"

	"hpaint/internal/geo"
)

// Tx is one open undo transaction on the host.
type Tx interface {
	Commit() error
	Rollback() error
}

// Host is the capability surface the machine drives: named parameters,
// the persistent stroke buffer, the paintable surface, and undo
// transactions. Implementations decide where parameters live; the
// machine only names them.
type Host interface {
	GetScalar(name string) float32
	SetScalar(name string, v float32)
	GetString(name string) string
	SetString(name, v string)
	GetBinary(name string) []byte
	SetBinary(name string, v []byte)

	// MergeGeometry appends committed stroke geometry to the buffer.
	MergeGeometry(g *geo.Geometry)

	// Buffer returns the persistent stroke buffer for in-place edits.
	Buffer() *geo.Geometry
	SetBuffer(g *geo.Geometry)

	// Surface returns the paintable canvas geometry, nil when painting
	// in air.
	Surface() *geo.Geometry

	BeginTransaction(label string) (Tx, error)
}

// MemHost is an in-memory Host. The demo app paints straight into it
// and tests observe it. Parameter access is mutex-guarded so render
// loops may read while the event loop writes.
type MemHost struct {
	mu      sync.RWMutex
	scalars map[string]float32
	strings map[string]string
	bins    map[string][]byte
	buffer  *geo.Geometry
	surface *geo.Geometry
}

// NewMemHost returns an empty host with a fresh buffer.
func NewMemHost() *MemHost {
	return &MemHost{
		scalars: make(map[string]float32),
		strings: make(map[string]string),
		bins:    make(map[string][]byte),
		buffer:  geo.New(),
	}
}

func (h *MemHost) GetScalar(name string) float32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.scalars[name]
}

func (h *MemHost) SetScalar(name string, v float32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scalars[name] = v
}

func (h *MemHost) GetString(name string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.strings[name]
}

func (h *MemHost) SetString(name, v string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.strings[name] = v
}

func (h *MemHost) GetBinary(name string) []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bins[name]
}

func (h *MemHost) SetBinary(name string, v []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bins[name] = append([]byte(nil), v...)
}

func (h *MemHost) MergeGeometry(g *geo.Geometry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.buffer == nil {
		h.buffer = geo.New()
	}
	h.buffer.Merge(g)
}

func (h *MemHost) Buffer() *geo.Geometry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.buffer
}

func (h *MemHost) SetBuffer(g *geo.Geometry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffer = g
}

// SetSurface installs the paintable canvas geometry.
func (h *MemHost) SetSurface(g *geo.Geometry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.surface = g
}

func (h *MemHost) Surface() *geo.Geometry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.surface
}

// BeginTransaction returns a no-op transaction; MemHost keeps no undo
// history.
func (h *MemHost) BeginTransaction(label string) (Tx, error) {
	return memTx{}, nil
}

type memTx struct{}

func (memTx) Commit() error   { return nil }
func (memTx) Rollback() error { return nil }
