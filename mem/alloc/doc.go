// Package alloc provides the allocator strategies carved from memory zones.
//
// # Overview
//
// Every strategy operates on an exclusively owned byte block handed over at
// construction time, typically carved from a zone by the memory manager. The
// block is never grown, never returned, and never shared: reclamation, where a
// strategy offers it at all, happens strictly inside the block.
//
// # Allocator Interface
//
// The core abstraction is the Allocator interface, the capability set every
// strategy implements:
//
//   - Allocate(size, alignment): carve an aligned sub-slice
//   - Free(buf): release one allocation (documented no-op for bump strategies)
//   - Reallocate(buf, newSize, alignment): resize, preserving contents
//   - Reset(): drop everything at once
//   - Stats(), Owns(), Validate(): introspection and diagnostics
//
// # Implementations
//
// StackAllocator: lock-free bump allocator with markers
//
//   - O(1) allocation via an atomic compare-and-swap retry loop
//   - Marker/Rewind for scoped, LIFO-style reclamation
//   - optional debug headers (magic, size, allocation id) for corruption checks
//   - safe for concurrent allocation from many goroutines
//
// LinearAllocator: single-owner bump allocator
//
//   - cheapest possible allocation, no atomics
//   - Reset-only reclamation, intended for per-frame transient data
//
// PoolAllocator: fixed-size slots with a LIFO free list
//
//   - O(1) Allocate and Free of uniformly sized elements
//   - free list threaded through the free slots themselves, zero overhead
//
// HeapAllocator: segregated free lists for general-purpose use
//
//   - size-class buckets with best-fit within a class
//   - splits large spans on allocate, coalesces with both neighbors on free
//
// # Usage Example
//
//	block := make([]byte, 1<<20)
//	sa, err := alloc.NewStack(block, "frame-temp", nil)
//	if err != nil {
//	    return err
//	}
//
//	m := sa.Marker()
//	buf, err := sa.Allocate(512, 16)
//	if err != nil {
//	    return err
//	}
//	// ... use buf ...
//	sa.Rewind(m) // reclaim everything allocated since the marker
//
// # Thread Safety
//
// StackAllocator.Allocate is lock-free and safe for concurrent use. Reset and
// Rewind invalidate outstanding allocations and belong at synchronization
// points only. PoolAllocator and HeapAllocator serialize Allocate and Free
// behind a mutex. LinearAllocator is single-owner; callers that share one
// must synchronize externally.
//
// # Related Packages
//
//   - github.com/vantorre/memkit/mem: zone table and manager that carve the blocks
//   - github.com/vantorre/memkit/pkg/memlog: diagnostic logging facade
package alloc
