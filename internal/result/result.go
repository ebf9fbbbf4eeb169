// Package result provides the two composition primitives the pipeline is
// built on: a short-circuiting Result for sequential decisions (router,
// executor, orchestrator) and an error-accumulating Validation for
// independent checks (validator, risk engine). Keeping the two distinct is
// deliberate: a stage either stops at the first hard failure or gathers
// every violation, never a mix.
package result

// Result is a success value or a typed error, composed by stopping at the
// first error.
type Result[T any] struct {
	value T
	err   error
}

func Ok[T any](v T) Result[T] { return Result[T]{value: v} }

func Err[T any](err error) Result[T] { return Result[T]{err: err} }

func (r Result[T]) IsOk() bool { return r.err == nil }

func (r Result[T]) Err() error { return r.err }

// Value returns the success value; only meaningful when IsOk.
func (r Result[T]) Value() T { return r.value }

// Unwrap returns the value and error in Go's native shape.
func (r Result[T]) Unwrap() (T, error) { return r.value, r.err }

// ValueOr returns the success value, or fallback on error.
func (r Result[T]) ValueOr(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.value
}

// Then chains a dependent computation, short-circuiting on error.
func Then[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return fn(r.value)
}

// Map transforms the success value, passing errors through.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return Ok(fn(r.value))
}

// OrElse recovers from an error with a fallback computation.
func (r Result[T]) OrElse(fn func(error) Result[T]) Result[T] {
	if r.err == nil {
		return r
	}
	return fn(r.err)
}
