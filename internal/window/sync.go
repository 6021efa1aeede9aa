package window

import "sync"

// Sync wraps a Window with a mutex, serializing every operation, for
// callers that need concurrent access directly. The classic circuit breaker
// (internal/breaker) does not use it: it keeps a plain Window guarded by its
// own mutex.
type Sync[T any] struct {
	mu sync.Mutex
	w  *Window[T]
}

// NewSync creates a thread-safe Window bounded at maxSize items.
func NewSync[T any](maxSize int) (*Sync[T], error) {
	w, err := New[T](maxSize)
	if err != nil {
		return nil, err
	}
	return &Sync[T]{w: w}, nil
}

// Push appends x under lock.
func (s *Sync[T]) Push(x T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Push(x)
}

// RejectWhere removes matching items under lock.
func (s *Sync[T]) RejectWhere(pred func(T) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.RejectWhere(pred)
}

// Len returns the current length under lock.
func (s *Sync[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Len()
}

// Last returns the most recent item under lock.
func (s *Sync[T]) Last() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Last()
}

// Items returns a copy of the window's contents under lock.
func (s *Sync[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Items()
}

// Clear empties the window under lock.
func (s *Sync[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Clear()
}

// WithLock runs fn with the window locked, giving callers atomic
// read-modify-write access (e.g. "push, then check span") without exposing
// the mutex itself.
func (s *Sync[T]) WithLock(fn func(w *Window[T])) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.w)
}
