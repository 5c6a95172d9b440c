package extract

import "sync"

// Token is a one-shot cancellation flag shared read-only with the loader
// and walker. It moves from live to aborted exactly once.
type Token struct {
	once sync.Once
	done chan struct{}
}

// NewToken returns a live token.
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Abort moves the token to aborted. It reports whether this call made the
// transition.
func (t *Token) Abort() bool {
	aborted := false
	t.once.Do(func() {
		close(t.done)
		aborted = true
	})
	return aborted
}

// Aborted reports whether Abort has been called.
func (t *Token) Aborted() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done is closed once the token is aborted.
func (t *Token) Done() <-chan struct{} {
	return t.done
}
