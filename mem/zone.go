package mem

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/vantorre/memkit/internal/align"
)

// zoneCarveAlign keeps every carved allocator block 16-byte aligned within
// the reservation, matching the strategies' default payload alignment.
const zoneCarveAlign = 16

// Zone is one contiguous region of the Manager's reservation. Carving is a
// one-way bump: blocks handed to allocators are never returned to the zone,
// only the usage statistic moves back down. The cursor and used counters are
// atomics so statistics reads never contend with carving.
type Zone struct {
	kind     ZoneKind
	base     int // offset of the zone within the reservation
	capacity int
	canGrow  bool

	mu     sync.Mutex // serializes carving
	cursor atomic.Int64
	used   atomic.Int64
}

func newZone(kind ZoneKind, base, capacity int, canGrow bool) *Zone {
	return &Zone{kind: kind, base: base, capacity: capacity, canGrow: canGrow}
}

func (z *Zone) Kind() ZoneKind { return z.kind }

// Capacity is the zone's fixed byte size decided at Initialize.
func (z *Zone) Capacity() int { return z.capacity }

// CanGrow reports the budget's growth hint for this zone.
func (z *Zone) CanGrow() bool { return z.canGrow }

// Used is the statistics counter: bytes carved minus bytes credited back via
// DeallocateToZone. Alignment gaps between carves are not counted.
func (z *Zone) Used() int { return int(z.used.Load()) }

// Carved is the cursor position: bytes of the zone consumed by carving,
// alignment gaps included. Carved never decreases.
func (z *Zone) Carved() int { return int(z.cursor.Load()) }

// Available is the zone capacity not yet carved.
func (z *Zone) Available() int { return z.capacity - z.Carved() }

// Stats returns a point-in-time snapshot.
func (z *Zone) Stats() ZoneStats {
	return ZoneStats{
		Kind:     z.kind,
		Capacity: z.capacity,
		Used:     z.Used(),
		Carved:   z.Carved(),
		CanGrow:  z.canGrow,
	}
}

// carve claims size bytes and returns their absolute offset within the
// reservation, aligned to zoneCarveAlign. On exhaustion the zone is left
// unchanged.
func (z *Zone) carve(size int) (int, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	cur := int(z.cursor.Load())
	payload := align.Up(z.base+cur, zoneCarveAlign)
	newCur := payload + size - z.base
	if newCur > z.capacity {
		return 0, errors.Wrapf(ErrZoneExhausted,
			"zone %s: requested %d, available %d", z.kind, size, z.capacity-cur)
	}
	z.cursor.Store(int64(newCur))
	z.used.Add(int64(size))
	return payload, nil
}

// creditBack lowers the usage statistic and returns the new value, which is
// negative when callers over-credit.
func (z *Zone) creditBack(size int) int64 {
	return z.used.Add(-int64(size))
}

// ZoneStats is a point-in-time snapshot of one zone's counters.
type ZoneStats struct {
	Kind     ZoneKind
	Capacity int
	Used     int
	Carved   int
	CanGrow  bool
}
