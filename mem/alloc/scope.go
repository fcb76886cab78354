package alloc

// Scope captures a stack allocator's marker at creation and rewinds to it
// when closed, releasing every allocation made inside the scope on all exit
// paths:
//
//	scope := alloc.EnterScope(frameStack)
//	defer scope.Close()
//
//	buf, err := frameStack.Allocate(512, 0)
//	...
//
// Close is idempotent. Scopes nest as long as they close in LIFO order,
// which defer guarantees within one goroutine.
type Scope struct {
	stack  *StackAllocator
	marker Marker
	closed bool
}

// EnterScope opens a scope over s at its current cursor.
func EnterScope(s *StackAllocator) *Scope {
	return &Scope{stack: s, marker: s.Marker()}
}

// Marker returns the cursor position captured when the scope was entered.
func (sc *Scope) Marker() Marker { return sc.marker }

// Close rewinds the allocator to the entry marker. The first call wins;
// later calls return nil without touching the allocator. Fails if the
// allocator was reset or rewound below the entry marker while the scope was
// open.
func (sc *Scope) Close() error {
	if sc.closed {
		return nil
	}
	sc.closed = true
	return sc.stack.Rewind(sc.marker)
}
