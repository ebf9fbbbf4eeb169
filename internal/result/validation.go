package result

// Validation carries a value plus every violation found by a set of
// independent checks. Unlike Result it never short-circuits: all checks run
// and all errors accumulate, so a multi-field ticket surfaces every problem
// at once.
type Validation[T any, E error] struct {
	value T
	errs  []E
}

// Of starts a validation over a value with no errors recorded.
func Of[T any, E error](v T) Validation[T, E] {
	return Validation[T, E]{value: v}
}

// Invalid starts a validation already carrying errors.
func Invalid[T any, E error](v T, errs ...E) Validation[T, E] {
	return Validation[T, E]{value: v, errs: errs}
}

// Check runs every rule against the value and accumulates all returned
// errors. Rules are independent facts; none is skipped because an earlier
// one failed.
func (v Validation[T, E]) Check(rules ...func(T) []E) Validation[T, E] {
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		v.errs = append(v.errs, rule(v.value)...)
	}
	return v
}

// Add appends errors directly, for checks whose result was computed outside
// a rule function.
func (v Validation[T, E]) Add(errs ...E) Validation[T, E] {
	v.errs = append(v.errs, errs...)
	return v
}

// Combine merges another validation over the same value, keeping this
// value and concatenating both error lists.
func (v Validation[T, E]) Combine(other Validation[T, E]) Validation[T, E] {
	v.errs = append(v.errs, other.errs...)
	return v
}

// OK reports whether no violations were recorded.
func (v Validation[T, E]) OK() bool { return len(v.errs) == 0 }

// Errors returns the full accumulated violation list in check order.
func (v Validation[T, E]) Errors() []E { return v.errs }

// Value returns the validated value.
func (v Validation[T, E]) Value() T { return v.value }

// ErrorList widens the typed error slice to []error for reporting layers.
func (v Validation[T, E]) ErrorList() []error {
	if len(v.errs) == 0 {
		return nil
	}
	out := make([]error, len(v.errs))
	for i, e := range v.errs {
		out[i] = e
	}
	return out
}
