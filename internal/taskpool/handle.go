package taskpool

// Handle tracks one submitted operation.
type Handle[T any] struct {
	ready chan struct{}
	val   T
	err   error
}

func newHandle[T any]() *Handle[T] {
	return &Handle[T]{ready: make(chan struct{})}
}

func (h *Handle[T]) resolve(val T, err error) {
	h.val, h.err = val, err
	close(h.ready)
}

// Done reports whether the operation has finished without blocking.
func (h *Handle[T]) Done() bool {
	select {
	case <-h.ready:
		return true
	default:
		return false
	}
}

// Ready is closed once the operation has finished.
func (h *Handle[T]) Ready() <-chan struct{} {
	return h.ready
}

// Result blocks until the operation finishes and returns its value and error.
func (h *Handle[T]) Result() (T, error) {
	<-h.ready
	return h.val, h.err
}
