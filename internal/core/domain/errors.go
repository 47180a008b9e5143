package domain

import "errors"

// ErrConflict is the sentinel wrapped by storage adapters when a mutation lost
// a lock or serialization race. Callers may retry safely: nothing was applied.
var ErrConflict = errors.New("concurrent conflict")
