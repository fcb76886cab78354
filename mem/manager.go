package mem

import (
	"slices"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/vantorre/memkit/internal/osmem"
	"github.com/vantorre/memkit/mem/alloc"
	"github.com/vantorre/memkit/pkg/memlog"
)

// Options configures a Manager at construction. The zero value (or a nil
// pointer) means: log through the process-wide slog default, no debug
// headers, no zero-fill pass.
type Options struct {
	// Logger receives all manager, zone, and allocator diagnostics. Nil
	// selects memlog.Default(); pass memlog.Discard() for silence.
	Logger memlog.Logger

	// DebugHeaders turns on per-allocation validation headers in every
	// allocator the manager creates.
	DebugHeaders bool

	// ZeroOnInit wipes the reservation after it is obtained. Fresh OS
	// reservations are already zeroed; this exists for deterministic reuse
	// in tests and for the Go-heap fallback path.
	ZeroOnInit bool
}

// Manager owns one contiguous reservation, partitions it into zones per a
// Budget, and carves allocator backing blocks out of those zones. There is
// no package-level instance: embedders construct a Manager and pass it where
// it is needed.
//
// Lifecycle calls (Initialize, Shutdown, Create*) are serialized by one
// mutex. Carving contends only on the per-zone mutex, and allocator hot
// paths touch no Manager state at all. Shutdown must not race in-flight
// carves or allocator use; quiesce callers first.
type Manager struct {
	log        memlog.Logger
	allocCfg   alloc.Config
	zeroOnInit bool

	mu          sync.Mutex
	initialized atomic.Bool
	block       []byte
	budget      Budget
	zones       [zoneKindCount]*Zone
	order       []*Zone

	peak     atomic.Int64
	registry *Registry
}

// GlobalStats is a point-in-time snapshot across the whole Manager. Usage is
// recomputed from the zones at call time, never cached.
type GlobalStats struct {
	TotalReserved     int
	TotalUsed         int
	TotalAvailable    int
	PeakUsage         int
	AllocatorCount    int
	ActiveAllocations int64
	Zones             []ZoneStats // declaration order
}

// New constructs an uninitialized Manager. A nil opts selects the defaults
// documented on Options.
func New(opts *Options) *Manager {
	var o Options
	if opts != nil {
		o = *opts
	}
	log := o.Logger
	if log == nil {
		log = memlog.Default()
	}
	return &Manager{
		log:        log,
		allocCfg:   alloc.Config{Logger: log, DebugHeaders: o.DebugHeaders},
		zeroOnInit: o.ZeroOnInit,
		registry:   NewRegistry(log),
	}
}

// Initialized reports whether the Manager currently holds a reservation.
func (m *Manager) Initialized() bool {
	return m.initialized.Load()
}

// Budget returns a copy of the live budget. Zero value before Initialize.
func (m *Manager) Budget() Budget {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.budget
	b.Zones = slices.Clone(b.Zones)
	return b
}

// Registry exposes the allocator registry for diagnostics.
func (m *Manager) Registry() *Registry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry
}

// Initialize validates the budget, reserves the backing block, and
// partitions it into zones in declaration order, each zone's base at the
// previous zone's end.
//
// When zone minimums push the summed zone sizes past TotalBytes the
// reservation grows to fit them, with a warning; every zone always receives
// exactly its Budget.ZoneSize.
//
// A second Initialize with an equal budget is a logged no-op. With a
// different budget it fails with ErrAlreadyInitialized and the live
// partition is kept.
func (m *Manager) Initialize(budget Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized.Load() {
		if m.budget.TotalBytes == budget.TotalBytes && slices.Equal(m.budget.Zones, budget.Zones) {
			m.log.Warn("manager", "already initialized; ignoring repeat initialize",
				"total", m.budget.TotalBytes)
			return nil
		}
		m.log.Error("manager", "already initialized with a different budget",
			"live_total", m.budget.TotalBytes, "requested_total", budget.TotalBytes)
		return errors.Wrapf(ErrAlreadyInitialized,
			"live total %d, requested total %d", m.budget.TotalBytes, budget.TotalBytes)
	}

	if err := budget.Validate(); err != nil {
		m.log.Error("manager", "budget rejected", "err", err.Error())
		return err
	}

	reserve := budget.TotalBytes
	if required := budget.RequiredBytes(); required > reserve {
		m.log.Warn("manager", "zone minimums exceed the declared total; growing reservation",
			"total", reserve, "required", required)
		reserve = required
	}

	block, err := osmem.ReserveCommit(reserve)
	if err != nil {
		m.log.Error("manager", "reservation failed", "bytes", reserve, "err", err.Error())
		return errors.Mark(errors.Wrapf(err, "reserving %d bytes", reserve), ErrReservationFailed)
	}
	if m.zeroOnInit {
		osmem.Zero(block)
	}

	base := 0
	order := make([]*Zone, 0, len(budget.Zones))
	for _, spec := range budget.Zones {
		size := budget.ZoneSize(spec.Zone)
		z := newZone(spec.Zone, base, size, spec.CanGrow)
		m.zones[spec.Zone] = z
		order = append(order, z)
		m.log.Debug("manager", "zone mapped",
			"zone", spec.Zone.String(), "base", base, "size", size, "can_grow", spec.CanGrow)
		base += size
	}

	m.block = block
	m.budget = budget
	m.budget.Zones = slices.Clone(budget.Zones)
	m.order = order
	m.peak.Store(0)
	m.initialized.Store(true)

	m.log.Info("manager", "initialized",
		"reserved", len(block), "zones", len(order), "debug_headers", m.allocCfg.DebugHeaders)
	return nil
}

// Shutdown sweeps the registry for leaks, releases the reservation, and
// clears all state. Every slice carved from this Manager is invalid
// afterwards. Shutdown before Initialize is a no-op.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized.Load() {
		m.log.Debug("manager", "shutdown before initialize; nothing to do")
		return nil
	}

	if leaks := m.registry.LeakCheck(); leaks > 0 {
		m.log.Warn("manager", "shutting down with live allocations", "live_allocations", leaks)
	}

	err := osmem.Release(m.block)
	m.block = nil
	m.budget = Budget{}
	m.zones = [zoneKindCount]*Zone{}
	m.order = nil
	m.registry = NewRegistry(m.log)
	m.initialized.Store(false)

	if err != nil {
		m.log.Error("manager", "release failed", "err", err.Error())
		return errors.Wrap(err, "releasing reservation")
	}
	m.log.Info("manager", "shut down", "peak", m.peak.Load())
	return nil
}

// Zone returns the live zone for kind, or false when the Manager is not
// initialized or the budget did not declare the zone.
func (m *Manager) Zone(kind ZoneKind) (*Zone, bool) {
	if !m.initialized.Load() || !kind.Valid() {
		return nil, false
	}
	z := m.zones[kind]
	return z, z != nil
}

// AllocateFromZone carves size bytes out of kind's zone and returns them as
// a sub-slice of the reservation (len == cap == size). The carve is one-way:
// the bytes belong to the caller until Shutdown. Exhaustion fails without
// mutating the zone.
func (m *Manager) AllocateFromZone(kind ZoneKind, size int) ([]byte, error) {
	z, err := m.zoneFor(kind, "allocate")
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		m.log.Warn("zone", "rejecting non-positive carve", "zone", kind.String(), "size", size)
		return nil, errors.Wrapf(alloc.ErrZeroSize, "carving from zone %s", kind)
	}

	off, err := z.carve(size)
	if err != nil {
		m.log.Warn("zone", "carve failed",
			"zone", kind.String(), "requested", size, "available", z.Available())
		return nil, err
	}
	m.raisePeak()
	m.log.Debug("zone", "carved", "zone", kind.String(), "offset", off, "size", size)
	return m.block[off : off+size : off+size], nil
}

// DeallocateToZone credits buf's bytes back to kind's usage statistic. The
// zone reclaims nothing: this keeps the books straight when an allocator is
// retired before Shutdown. A nil buf is a no-op.
func (m *Manager) DeallocateToZone(kind ZoneKind, buf []byte) error {
	z, err := m.zoneFor(kind, "deallocate")
	if err != nil {
		return err
	}
	if len(buf) == 0 {
		return nil
	}
	if off, ok := m.reservationOffset(buf); !ok || off < z.base || off >= z.base+z.capacity {
		m.log.Warn("zone", "deallocate credit for a buffer outside the zone",
			"zone", kind.String(), "size", len(buf))
	}
	if after := z.creditBack(len(buf)); after < 0 {
		m.log.Warn("zone", "usage went negative; mismatched deallocate credits",
			"zone", kind.String(), "used", after)
	}
	return nil
}

// CreateStackAllocator carves a block from kind's zone and builds a
// StackAllocator over it. A zero size selects the per-kind default;
// out-of-range sizes are adjusted to it with a warning.
func (m *Manager) CreateStackAllocator(kind ZoneKind, size int, name string) (*alloc.StackAllocator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	block, err := m.carveFor(alloc.KindStack, kind, size, name)
	if err != nil {
		return nil, err
	}
	a, err := alloc.NewStack(block, name, &m.allocCfg)
	if err != nil {
		m.abandonCarve(kind, block, name)
		return nil, err
	}
	m.finishCreate(a, kind, len(block), name)
	return a, nil
}

// CreateLinearAllocator carves a block from kind's zone and builds a
// LinearAllocator over it. Size handling matches CreateStackAllocator.
func (m *Manager) CreateLinearAllocator(kind ZoneKind, size int, name string) (*alloc.LinearAllocator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	block, err := m.carveFor(alloc.KindLinear, kind, size, name)
	if err != nil {
		return nil, err
	}
	a, err := alloc.NewLinear(block, name, &m.allocCfg)
	if err != nil {
		m.abandonCarve(kind, block, name)
		return nil, err
	}
	m.finishCreate(a, kind, len(block), name)
	return a, nil
}

// CreateHeapAllocator carves a block from kind's zone and builds a
// HeapAllocator over it. Size handling matches CreateStackAllocator.
func (m *Manager) CreateHeapAllocator(kind ZoneKind, size int, name string) (*alloc.HeapAllocator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	block, err := m.carveFor(alloc.KindHeap, kind, size, name)
	if err != nil {
		return nil, err
	}
	a, err := alloc.NewHeap(block, name, &m.allocCfg)
	if err != nil {
		m.abandonCarve(kind, block, name)
		return nil, err
	}
	m.finishCreate(a, kind, len(block), name)
	return a, nil
}

// CreatePoolAllocator carves a block sized for elemCount slots of elemSize
// bytes and builds a PoolAllocator over it. When the computed block size
// falls outside the pool size range it is adjusted to the pool default,
// changing the slot count.
func (m *Manager) CreatePoolAllocator(kind ZoneKind, elemSize, elemCount int, name string) (*alloc.PoolAllocator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elemSize <= 0 || elemCount <= 0 {
		m.log.Error("manager", "rejecting pool with non-positive geometry",
			"name", name, "elem_size", elemSize, "elem_count", elemCount)
		return nil, errors.Wrapf(alloc.ErrBadElementSize,
			"pool %q: element size %d, count %d", name, elemSize, elemCount)
	}
	block, err := m.carveFor(alloc.KindPool, kind, alloc.PoolBlockSize(elemSize, elemCount), name)
	if err != nil {
		return nil, err
	}
	a, err := alloc.NewPool(block, elemSize, name, &m.allocCfg)
	if err != nil {
		m.abandonCarve(kind, block, name)
		return nil, err
	}
	m.finishCreate(a, kind, len(block), name)
	return a, nil
}

// DestroyAllocator retires an allocator created by this Manager: it is
// unregistered and its block's bytes are credited back to zone statistics.
// The block itself stays carved until Shutdown, so stale use cannot corrupt
// a neighbor.
func (m *Manager) DestroyAllocator(a alloc.Allocator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized.Load() {
		return ErrNotInitialized
	}
	for _, rec := range m.registry.Records() {
		if rec.Allocator == a {
			m.registry.Unregister(a)
			if after := m.zones[rec.Zone].creditBack(rec.Size); after < 0 {
				m.log.Warn("zone", "usage went negative; mismatched deallocate credits",
					"zone", rec.Zone.String(), "used", after)
			}
			m.log.Info("manager", "allocator destroyed",
				"name", rec.Name, "zone", rec.Zone.String(), "size", rec.Size)
			return nil
		}
	}
	return errors.Wrapf(alloc.ErrNotOwned, "allocator %q was not created by this manager", a.Name())
}

// GlobalStats recomputes usage by summing the zones at call time and folds
// the result into the monotone peak.
func (m *Manager) GlobalStats() (GlobalStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized.Load() {
		return GlobalStats{}, ErrNotInitialized
	}

	stats := GlobalStats{
		TotalReserved:  len(m.block),
		AllocatorCount: m.registry.Count(),
		Zones:          make([]ZoneStats, 0, len(m.order)),
	}
	for _, z := range m.order {
		zs := z.Stats()
		stats.TotalUsed += zs.Used
		stats.Zones = append(stats.Zones, zs)
	}
	stats.TotalAvailable = stats.TotalReserved - stats.TotalUsed
	for _, rec := range m.registry.Records() {
		stats.ActiveAllocations += rec.Allocator.Stats().ActiveAllocations
	}

	m.raisePeak()
	stats.PeakUsage = int(m.peak.Load())
	return stats, nil
}

// RebalanceZones surveys zone load and reports the pressure picture. Zone
// boundaries are fixed for the life of the reservation, so this pass moves
// no memory; it exists so load imbalances surface in logs long before a
// zone exhausts.
func (m *Manager) RebalanceZones() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized.Load() {
		return ErrNotInitialized
	}

	var hottest *Zone
	var hottestLoad float64
	for _, z := range m.order {
		load := 0.0
		if z.capacity > 0 {
			load = float64(z.Carved()) / float64(z.capacity)
		}
		m.log.Info("manager", "zone load",
			"zone", z.kind.String(), "carved", z.Carved(), "capacity", z.capacity,
			"load", load, "can_grow", z.canGrow)
		if load > hottestLoad {
			hottest, hottestLoad = z, load
		}
	}
	if hottest != nil {
		m.log.Info("manager", "rebalance survey complete; zone boundaries are fixed",
			"hottest_zone", hottest.kind.String(), "load", hottestLoad)
	}
	return nil
}

// zoneFor resolves kind to a live zone, logging and failing on lifecycle or
// vocabulary misuse.
func (m *Manager) zoneFor(kind ZoneKind, op string) (*Zone, error) {
	if !m.initialized.Load() {
		m.log.Error("manager", "zone operation before initialize", "op", op, "zone", kind.String())
		return nil, ErrNotInitialized
	}
	if !kind.Valid() {
		m.log.Error("manager", "zone operation on undefined zone", "op", op, "zone", int(kind))
		return nil, errors.Wrapf(ErrUnknownZone, "zone %d is not a defined zone", kind)
	}
	z := m.zones[kind]
	if z == nil {
		m.log.Error("manager", "zone operation on unbudgeted zone", "op", op, "zone", kind.String())
		return nil, errors.Wrapf(ErrUnknownZone, "zone %s is not in the active budget", kind)
	}
	return z, nil
}

// carveFor adjusts size per the allocator kind's size table and carves the
// block. Caller holds m.mu.
func (m *Manager) carveFor(ak alloc.Kind, kind ZoneKind, size int, name string) ([]byte, error) {
	adjusted := alloc.AdjustSize(ak, size)
	switch {
	case size == 0:
		m.log.Debug("manager", "using default allocator size",
			"name", name, "kind", ak.String(), "size", adjusted)
	case adjusted != size:
		m.log.Warn("manager", "allocator size out of range; using default",
			"name", name, "kind", ak.String(), "requested", size, "adjusted", adjusted)
	}
	return m.AllocateFromZone(kind, adjusted)
}

// abandonCarve credits back a carve whose allocator failed to construct.
// The bytes stay carved; only the statistic moves.
func (m *Manager) abandonCarve(kind ZoneKind, block []byte, name string) {
	m.zones[kind].creditBack(len(block))
	m.log.Warn("manager", "allocator construction failed; carve abandoned",
		"name", name, "zone", kind.String(), "size", len(block))
}

func (m *Manager) finishCreate(a alloc.Allocator, kind ZoneKind, size int, name string) {
	m.registry.Register(a, kind, size)
	m.log.Info("manager", "allocator created",
		"name", name, "kind", a.Kind().String(), "zone", kind.String(), "size", size)
}

// raisePeak folds the current total usage into the monotone peak with a CAS
// retry loop.
func (m *Manager) raisePeak() {
	var used int64
	for _, z := range m.order {
		used += int64(z.Used())
	}
	for {
		cur := m.peak.Load()
		if used <= cur || m.peak.CompareAndSwap(cur, used) {
			return
		}
	}
}

// reservationOffset returns buf's offset within the reservation, or false
// when buf does not point into it.
func (m *Manager) reservationOffset(buf []byte) (int, bool) {
	if len(m.block) == 0 || len(buf) == 0 {
		return 0, false
	}
	p := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	base := uintptr(unsafe.Pointer(unsafe.SliceData(m.block)))
	if p < base || p >= base+uintptr(len(m.block)) {
		return 0, false
	}
	return int(p - base), true
}
