package frame

// Slot is a single-slot mailbox holding the most recent value. A writer
// never blocks: an unread value is replaced. A reader drains at most one
// value per Take.
type Slot[T any] struct {
	ch chan T
}

func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ch: make(chan T, 1)}
}

// Offer stores v, discarding any value nobody has taken yet. It must only
// be called from a single goroutine.
func (s *Slot[T]) Offer(v T) {
	for {
		select {
		case s.ch <- v:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Take returns the pending value, if any, without blocking.
func (s *Slot[T]) Take() (T, bool) {
	select {
	case v := <-s.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the slot for select loops.
func (s *Slot[T]) C() <-chan T { return s.ch }
