package engine

// RingBuf is a fixed-capacity FIFO with O(1) indexed reads and O(1)
// push-with-eviction. Grounded on the rolling-window buffers used across the
// pack's indicator code (e.g. the bounded candle windows in
// indicators/streaming.go and the evdnx price buffer) but made generic and
// capacity-fixed per the ring-buffer contract the DSL's rolling indicators
// need.
type RingBuf[T any] struct {
	data []T
	head int
	tail int
	size int
}

// NewRingBuf constructs a ring buffer of fixed capacity k. k must be > 0.
func NewRingBuf[T any](k int) (*RingBuf[T], error) {
	if k <= 0 {
		return nil, &Error{Kind: KindInvalidArgument, Message: "ring buffer capacity must be > 0"}
	}
	return &RingBuf[T]{data: make([]T, k)}, nil
}

// Cap returns the fixed capacity.
func (r *RingBuf[T]) Cap() int { return len(r.data) }

// Len returns the current number of elements.
func (r *RingBuf[T]) Len() int { return r.size }

// Full reports whether the buffer has reached capacity.
func (r *RingBuf[T]) Full() bool { return r.size == len(r.data) }

// Push writes v at the tail. If the buffer was already full, the evicted
// element (previously at head) is returned as (evicted, true).
func (r *RingBuf[T]) Push(v T) (evicted T, ok bool) {
	k := len(r.data)
	if r.size == k {
		evicted = r.data[r.head]
		ok = true
		r.head = (r.head + 1) % k
	} else {
		r.size++
	}
	r.data[r.tail] = v
	r.tail = (r.tail + 1) % k
	return evicted, ok
}

// Get returns the i-th oldest element, i in [0, Len()). Behavior is
// undefined outside that range.
func (r *RingBuf[T]) Get(i int) T {
	return r.data[(r.head+i)%len(r.data)]
}

// First returns the oldest element.
func (r *RingBuf[T]) First() T { return r.Get(0) }

// Last returns the newest element.
func (r *RingBuf[T]) Last() T { return r.Get(r.size - 1) }

// ToArray returns the elements oldest-to-newest as a new slice.
func (r *RingBuf[T]) ToArray() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.Get(i)
	}
	return out
}

// Clear resets the buffer to empty without reallocating.
func (r *RingBuf[T]) Clear() {
	r.head, r.tail, r.size = 0, 0, 0
}

// StatsRingBuf extends RingBuf[float64] with a running sum maintained
// incrementally on every push, giving O(1) sum/avg instead of the O(n) scan
// a plain ring buffer would need.
type StatsRingBuf struct {
	*RingBuf[float64]
	sum float64
}

// NewStatsRingBuf constructs a stats ring buffer of fixed capacity k.
func NewStatsRingBuf(k int) (*StatsRingBuf, error) {
	rb, err := NewRingBuf[float64](k)
	if err != nil {
		return nil, err
	}
	return &StatsRingBuf{RingBuf: rb}, nil
}

// Push adds v, updating the running sum: add the pushed value, subtract the
// evicted value if one was displaced.
func (s *StatsRingBuf) Push(v float64) {
	evicted, ok := s.RingBuf.Push(v)
	s.sum += v
	if ok {
		s.sum -= evicted
	}
}

// Sum returns the running sum of all elements currently held.
func (s *StatsRingBuf) Sum() float64 { return s.sum }

// Avg returns Sum()/Len(), or 0 when empty.
func (s *StatsRingBuf) Avg() float64 {
	if s.Len() == 0 {
		return 0
	}
	return s.sum / float64(s.Len())
}

// Clear resets size, head, tail and the running sum.
func (s *StatsRingBuf) Clear() {
	s.RingBuf.Clear()
	s.sum = 0
}
