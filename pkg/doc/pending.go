package doc

// Pending is the continuation of an asynchronous Is call. It resolves to the
// builder once the collect function returns.
type Pending[T any] struct {
	done chan struct{}
	v    T
	err  error
}

func goPending[T any](v T, run func() error) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{}), v: v}
	go func() {
		defer close(p.done)
		p.err = run()
	}()
	return p
}

// Done is closed once the collect function has returned.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the collect function returns, then yields the builder
// and its error.
func (p *Pending[T]) Wait() (T, error) {
	<-p.done
	return p.v, p.err
}
