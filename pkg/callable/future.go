package callable

import (
	"context"
	"errors"
	"fmt"
)

// ErrNilFuture is returned when an async function hands back a nil future.
var ErrNilFuture = errors.New("callable: async function returned a nil future")

// PanicError carries the value recovered from a panicking extension.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("callable: panic: %v", e.Value)
}

// Unwrap exposes the recovered value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Future is a pending result that settles exactly once, either with a value
// or with an error.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve returns a future already settled with value.
func Resolve(value any) *Future {
	f := newFuture()
	f.settle(value, nil)
	return f
}

// Reject returns a future already settled with err. A nil err is replaced so
// a rejected future never looks resolved.
func Reject(err error) *Future {
	if err == nil {
		err = errors.New("callable: rejected without error")
	}
	f := newFuture()
	f.settle(nil, err)
	return f
}

// Go runs fn on its own goroutine and returns a future for its outcome.
// Panics inside fn reject the future with a *PanicError.
func Go(fn func() (any, error)) *Future {
	f := newFuture()
	go func() {
		value, err := invoke(fn)
		f.settle(value, err)
	}()
	return f
}

func (f *Future) settle(value any, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is done.
func (f *Future) Await(ctx context.Context) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Settled reports whether the future already carries an outcome.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func invoke(fn func() (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}
