package ring

// Buffer is a fixed-capacity FIFO. Push on a full buffer evicts the oldest element.
// Not safe for concurrent use; callers hold their own lock.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

func (b *Buffer[T]) Len() int { return b.size }
func (b *Buffer[T]) Cap() int { return len(b.items) }

// Push appends v and reports whether an element was evicted.
func (b *Buffer[T]) Push(v T) bool {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
		return false
	}
	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
	return true
}

// At returns the i-th element counting from the oldest.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.size {
		panic("ring: index out of range")
	}
	return b.items[(b.head+i)%len(b.items)]
}

// Ref returns a pointer into the buffer for in-place updates.
// The pointer is invalidated by the next Push.
func (b *Buffer[T]) Ref(i int) *T {
	if i < 0 || i >= b.size {
		panic("ring: index out of range")
	}
	return &b.items[(b.head+i)%len(b.items)]
}

func (b *Buffer[T]) Last() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.At(b.size - 1), true
}

// Slice copies the contents oldest first.
func (b *Buffer[T]) Slice() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.At(i)
	}
	return out
}

// Tail copies the newest n elements oldest first.
func (b *Buffer[T]) Tail(n int) []T {
	if n > b.size {
		n = b.size
	}
	if n < 0 {
		n = 0
	}
	out := make([]T, n)
	start := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.At(start + i)
	}
	return out
}

// Insert places v at position i (0 = oldest), shifting newer elements up.
// On a full buffer the oldest element is evicted; inserting at 0 into a
// full buffer is a no-op since v would be evicted immediately.
func (b *Buffer[T]) Insert(i int, v T) {
	if i < 0 || i > b.size {
		panic("ring: index out of range")
	}
	if i == b.size {
		b.Push(v)
		return
	}
	if b.size == len(b.items) {
		if i == 0 {
			return
		}
		// drop the oldest, the slot at i-1 becomes free after the shift
		b.head = (b.head + 1) % len(b.items)
		b.size--
		i--
	}
	b.size++
	for j := b.size - 1; j > i; j-- {
		*b.Ref(j) = b.At(j - 1)
	}
	*b.Ref(i) = v
}
