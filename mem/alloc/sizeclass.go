package alloc

// Heap size class strategy: linear buckets for small requests, then
// logarithmic growth until heapLargeMin. Spans beyond the last class
// boundary bypass the class heaps and live on the large list.
const (
	heapClassMin       = 16
	heapClassLinearMax = 512
	heapClassIncrement = 16
	heapLargeMin       = 16 * KiB
	heapGrowthFactor   = 1.5
)

// classTable maps span sizes onto segregated free-list indices. boundaries
// holds each class's inclusive upper bound in ascending order.
type classTable struct {
	boundaries []int
}

// newClassTable builds the bucket boundaries: heapClassMin up to
// heapClassLinearMax in heapClassIncrement steps, then multiplying by
// heapGrowthFactor until heapLargeMin.
func newClassTable() *classTable {
	t := &classTable{boundaries: make([]int, 0, 48)}
	for size := heapClassMin; size < heapClassLinearMax; size += heapClassIncrement {
		t.boundaries = append(t.boundaries, size+heapClassIncrement-1)
	}
	size := heapClassLinearMax
	for size < heapLargeMin {
		next := int(float64(size) * heapGrowthFactor)
		if next <= size {
			next = size + 1
		}
		t.boundaries = append(t.boundaries, next-1)
		size = next
	}
	return t
}

// numClasses returns the class count, excluding the large list.
func (t *classTable) numClasses() int { return len(t.boundaries) }

// classFor returns the class index whose bucket covers size, or numClasses
// for sizes that belong on the large list. Binary search over boundaries.
func (t *classTable) classFor(size int) int {
	lo, hi := 0, len(t.boundaries)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if size <= t.boundaries[mid] {
			if mid == 0 || size > t.boundaries[mid-1] {
				return mid
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return len(t.boundaries)
}
