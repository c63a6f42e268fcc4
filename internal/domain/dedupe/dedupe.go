// Package dedupe tracks already-seen evidence and groups signals per player.
package dedupe

import (
	"container/list"
	"context"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultMaxSize = 50000

// Deduper records evidence fingerprints to ensure each snippet is scored once.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key uint64) bool

	// Unrecord forgets key so the evidence can be retried.
	Unrecord(ctx context.Context, key uint64)

	Size() int
}

// Fingerprint hashes the normalized parts of an evidence item.
func Fingerprint(parts ...string) uint64 {
	d := xxhash.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = d.WriteString("\x1f")
		}
		_, _ = d.WriteString(strings.ToLower(strings.TrimSpace(p)))
	}
	return d.Sum64()
}

// inMemoryDeduper keeps at most maxSize keys, evicting the oldest first.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[uint64]*list.Element
	order   *list.List
	maxSize int
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		seen:    make(map[uint64]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		if oldest := d.order.Front(); oldest != nil {
			delete(d.seen, oldest.Value.(uint64))
			d.order.Remove(oldest)
		}
	}
	d.seen[key] = d.order.PushBack(key)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
