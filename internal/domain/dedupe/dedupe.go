// Package dedupe tracks idempotency keys of create submissions so a double
// submitted form does not insert the same event twice.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 10000

// Deduper records idempotency keys.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records it if not.
	// Returns true when key was already recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so a failed submission can be retried with it.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key string
	gen uint64
}

// inMemoryDeduper keeps at most maxSize keys and evicts the oldest first.
// The ring may hold entries for keys that were unrecorded; the generation
// stored in seen tells live entries apart from those.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64
	ring    []entry
	start   int
	gen     uint64
	maxSize int
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize <= 0 {
		d.maxSize = defaultMaxSize
	}
	d.seen = make(map[string]uint64)
	d.ring = make([]entry, 0, d.maxSize)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}

	d.gen++
	e := entry{key: key, gen: d.gen}
	if len(d.ring) < d.maxSize {
		d.ring = append(d.ring, e)
	} else {
		oldest := d.ring[d.start]
		if gen, ok := d.seen[oldest.key]; ok && gen == oldest.gen {
			delete(d.seen, oldest.key)
		}
		d.ring[d.start] = e
		d.start = (d.start + 1) % d.maxSize
	}
	d.seen[key] = e.gen
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
