package flex

import "fmt"

// Handle refers to a slot in an Arena. The generation detects use after
// the slot was released and reused.
type Handle struct {
	Index      int32
	Generation uint32
}

// InvalidHandle never resolves.
var InvalidHandle = Handle{Index: -1}

func (h Handle) Valid() bool { return h.Index >= 0 }

func (h Handle) String() string {
	return fmt.Sprintf("handle(%d@%d)", h.Index, h.Generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Arena stores values densely addressable by generation-checked handles.
// Released slots are reused lowest index first.
type Arena[T any] struct {
	slots []slot[T]
	free  []int32
	live  int
}

// Add stores v and returns its handle.
func (a *Arena[T]) Add(v T) Handle {
	if n := len(a.free); n > 0 {
		// free is kept sorted descending so the lowest index pops last.
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.value = v
		s.live = true
		a.live++
		return Handle{Index: idx, Generation: s.generation}
	}
	a.slots = append(a.slots, slot[T]{value: v, live: true})
	a.live++
	return Handle{Index: int32(len(a.slots) - 1)}
}

func (a *Arena[T]) resolve(h Handle) (*slot[T], error) {
	if h.Index < 0 || int(h.Index) >= len(a.slots) {
		return nil, &IndexError{Kind: "handle", Index: int(h.Index), Len: len(a.slots)}
	}
	s := &a.slots[h.Index]
	if !s.live || s.generation != h.Generation {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	return s, nil
}

// Get returns the value behind h.
func (a *Arena[T]) Get(h Handle) (T, error) {
	s, err := a.resolve(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Set replaces the value behind h.
func (a *Arena[T]) Set(h Handle, v T) error {
	s, err := a.resolve(h)
	if err != nil {
		return err
	}
	s.value = v
	return nil
}

// Remove releases h. Subsequent use of h fails with ErrStaleHandle.
func (a *Arena[T]) Remove(h Handle) error {
	s, err := a.resolve(h)
	if err != nil {
		return err
	}
	var zero T
	s.value = zero
	s.live = false
	s.generation++
	a.live--

	// insert keeping descending order
	i := len(a.free)
	a.free = append(a.free, 0)
	for i > 0 && a.free[i-1] < h.Index {
		a.free[i] = a.free[i-1]
		i--
	}
	a.free[i] = h.Index
	return nil
}

// Len is the number of live values.
func (a *Arena[T]) Len() int { return a.live }

// Cap is the number of slots including released ones.
func (a *Arena[T]) Cap() int { return len(a.slots) }

// Each visits live values in slot order.
func (a *Arena[T]) Each(fn func(h Handle, v T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.live {
			fn(Handle{Index: int32(i), Generation: s.generation}, s.value)
		}
	}
}
