package mem

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vantorre/memkit/mem/alloc"
	"github.com/vantorre/memkit/pkg/memlog"
)

// Record describes one registered allocator: which zone backs it, how many
// bytes were carved for it, and when it was created.
type Record struct {
	Allocator alloc.Allocator
	Zone      ZoneKind
	Size      int
	Name      string
	Created   time.Time
}

// Registry tracks the allocators carved from a Manager. It exists for
// diagnostics: leak sweeps, validation sweeps, and the debug report walk it.
// All methods are safe for concurrent use; none sit on an allocation path.
type Registry struct {
	log memlog.Logger

	mu      sync.Mutex
	records []Record
}

// NewRegistry returns an empty registry logging through log. A nil log
// discards diagnostics.
func NewRegistry(log memlog.Logger) *Registry {
	if log == nil {
		log = memlog.Discard()
	}
	return &Registry{log: log}
}

// Register adds a to the registry.
func (r *Registry) Register(a alloc.Allocator, zone ZoneKind, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{
		Allocator: a,
		Zone:      zone,
		Size:      size,
		Name:      a.Name(),
		Created:   time.Now(),
	})
	r.log.Debug("registry", "allocator registered",
		"name", a.Name(), "kind", a.Kind().String(), "zone", zone.String(), "size", size)
}

// Unregister removes a, matched by identity, and reports whether it was
// present.
func (r *Registry) Unregister(a alloc.Allocator) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rec := range r.records {
		if rec.Allocator == a {
			r.records = append(r.records[:i], r.records[i+1:]...)
			r.log.Debug("registry", "allocator unregistered", "name", rec.Name, "zone", rec.Zone.String())
			return true
		}
	}
	return false
}

// Count returns the number of registered allocators.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Records returns a snapshot copy in registration order.
func (r *Registry) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// LeakCheck sums live allocations across every registered allocator and
// warns per allocator that still holds any. Purely diagnostic: nothing is
// reclaimed.
func (r *Registry) LeakCheck() int64 {
	var total int64
	for _, rec := range r.Records() {
		stats := rec.Allocator.Stats()
		if stats.ActiveAllocations > 0 {
			r.log.Warn("registry", "allocator holds live allocations",
				"name", rec.Name, "zone", rec.Zone.String(),
				"active", stats.ActiveAllocations, "used", stats.Used)
		}
		total += stats.ActiveAllocations
	}
	r.log.Info("registry", "leak check complete",
		"allocators", r.Count(), "live_allocations", total)
	return total
}

// ValidateAll runs Validate on every registered allocator and combines the
// failures, one wrapped error per corrupt allocator.
func (r *Registry) ValidateAll() error {
	var combined error
	for _, rec := range r.Records() {
		if err := rec.Allocator.Validate(); err != nil {
			r.log.Error("registry", "allocator failed validation",
				"name", rec.Name, "zone", rec.Zone.String(), "err", err.Error())
			combined = errors.CombineErrors(combined,
				errors.Wrapf(err, "allocator %s (zone %s)", rec.Name, rec.Zone))
		}
	}
	return combined
}
