package callable

import (
	"context"
	"fmt"
)

// SyncFunc returns its result directly.
type SyncFunc func(ctx context.Context, args ...any) (any, error)

// AsyncFunc returns a pending result.
type AsyncFunc func(ctx context.Context, args ...any) *Future

// Kind records how a Callable was registered.
type Kind int

const (
	KindInvalid Kind = iota
	KindSync
	KindAsync
)

func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	default:
		return "invalid"
	}
}

// Markup is pre-escaped output. Returning it from a callable bypasses
// auto-escaping for that call only.
type Markup string

// Options are the declared traits of a callable.
type Options struct {
	// Safe marks every result as pre-escaped HTML.
	Safe bool
	// Arity is the exact argument count, or the minimum when Variadic is set.
	// Negative disables the check.
	Arity    int
	Variadic bool
}

// Option customises Options.
type Option func(*Options)

// WithSafeOutput marks the callable output as safe HTML.
func WithSafeOutput() Option {
	return func(o *Options) {
		o.Safe = true
	}
}

// WithArity requires exactly n arguments.
func WithArity(n int) Option {
	return func(o *Options) {
		o.Arity = n
		o.Variadic = false
	}
}

// WithVariadic requires at least min arguments.
func WithVariadic(min int) Option {
	return func(o *Options) {
		o.Arity = min
		o.Variadic = true
	}
}

// ArityError is the rejection used when a call violates the declared arity.
type ArityError struct {
	Want     int
	Got      int
	Variadic bool
}

func (e *ArityError) Error() string {
	if e.Variadic {
		return fmt.Sprintf("callable: expected at least %d argument(s), got %d", e.Want, e.Got)
	}
	return fmt.Sprintf("callable: expected %d argument(s), got %d", e.Want, e.Got)
}

// Callable pairs an adapted function with its declared options.
type Callable struct {
	fn   AsyncFunc
	kind Kind
	opts Options
}

// Sync adapts a function that returns its value directly. The function is
// run inline at call time; errors and panics become rejections.
func Sync(fn SyncFunc, opts ...Option) Callable {
	if fn == nil {
		return Callable{}
	}
	adapted := func(ctx context.Context, args ...any) *Future {
		value, err := invoke(func() (any, error) {
			return fn(ctx, args...)
		})
		if err != nil {
			return Reject(err)
		}
		return Resolve(value)
	}
	return Callable{fn: adapted, kind: KindSync, opts: buildOptions(opts)}
}

// Async registers a function that already produces a future. A synchronous
// panic before the future is returned still rejects.
func Async(fn AsyncFunc, opts ...Option) Callable {
	if fn == nil {
		return Callable{}
	}
	adapted := func(ctx context.Context, args ...any) *Future {
		var fut *Future
		_, err := invoke(func() (any, error) {
			fut = fn(ctx, args...)
			return nil, nil
		})
		if err != nil {
			return Reject(err)
		}
		if fut == nil {
			return Reject(ErrNilFuture)
		}
		return fut
	}
	return Callable{fn: adapted, kind: KindAsync, opts: buildOptions(opts)}
}

func buildOptions(opts []Option) Options {
	out := Options{Arity: -1}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&out)
	}
	return out
}

// Valid reports whether the callable wraps a function.
func (c Callable) Valid() bool {
	return c.fn != nil
}

// Kind reports how the callable was registered.
func (c Callable) Kind() Kind {
	return c.kind
}

// Options returns the declared options.
func (c Callable) Options() Options {
	return c.opts
}

// Call invokes the wrapped function once and always returns a future.
func (c Callable) Call(ctx context.Context, args ...any) *Future {
	if c.fn == nil {
		return Reject(fmt.Errorf("callable: %s callable has no function", c.kind))
	}
	if err := c.checkArity(len(args)); err != nil {
		return Reject(err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return c.fn(ctx, args...)
}

func (c Callable) checkArity(got int) error {
	want := c.opts.Arity
	if want < 0 {
		return nil
	}
	if c.opts.Variadic {
		if got < want {
			return &ArityError{Want: want, Got: got, Variadic: true}
		}
		return nil
	}
	if got != want {
		return &ArityError{Want: want, Got: got}
	}
	return nil
}
