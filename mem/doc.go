// Package mem implements the engine's zone-budgeted memory core: one
// process-wide reservation, partitioned into purpose-specific zones, from
// which specialized allocators are carved.
//
// # Overview
//
// A Budget declares how a total byte count is divided among zones by weight
// and hard bounds. A Manager reserves the total once, partitions it into
// contiguous zones, and carves allocator backing blocks from zones through
// atomic bump cursors. Concrete allocator strategies live in package
// mem/alloc and operate on their carved block without ever touching the
// Manager again.
//
// # Lifecycle
//
//	mgr := mem.New(nil)
//	if err := mgr.Initialize(mem.DesktopBudget()); err != nil {
//		return err
//	}
//	defer mgr.Shutdown()
//
//	frame, err := mgr.CreateStackAllocator(mem.ZoneFrameTemp, 0, "frame")
//	if err != nil {
//		return err
//	}
//	buf, err := frame.Allocate(4096, 16)
//
// # Zones Are Arenas
//
// Zone carving is strictly one-way: a block carved for an allocator belongs
// to that allocator until the whole Manager shuts down. DeallocateToZone
// adjusts the usage statistics only; it never returns bytes to the zone.
// Reclamation happens inside the allocator strategies (stack rewind, pool
// free lists, heap coalescing), never at the zone level.
//
// # Thread Safety
//
// Carving is serialized per zone by a dedicated mutex; different zones
// proceed independently. Allocator hot paths never take a Manager lock.
// Registry and lifecycle operations use their own coarse locks and stay off
// the allocation path.
//
// # Related Packages
//
//   - mem/alloc: allocator strategies (stack, linear, pool, heap)
//   - pkg/memlog: the logging facade the core emits diagnostics through
//   - pkg/memmetrics: optional go-metrics gauges over a live Manager
package mem
