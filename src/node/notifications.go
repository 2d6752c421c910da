package node

import (
	"github.com/corelattice/lattice/src/ledger"
)

// Notified pairs an operation result with the notifications collected while
// producing it. Notifications are kept even when Err is set, so that partial
// progress still reaches subscribers.
type Notified[T any] struct {
	Value         T
	Notifications []ledger.Notification
	Err           error
}

// NewNotified wraps a value and its notifications.
func NewNotified[T any](value T, notifications []ledger.Notification) Notified[T] {
	return Notified[T]{Value: value, Notifications: notifications}
}

// Extend appends the collected notifications to sink and returns the value.
// It is meant for operations that cannot fail.
func (n Notified[T]) Extend(sink *[]ledger.Notification) T {
	if sink != nil {
		*sink = append(*sink, n.Notifications...)
	}
	return n.Value
}

// Factor appends the collected notifications to sink whether or not the
// operation failed, and returns the value and error.
func (n Notified[T]) Factor(sink *[]ledger.Notification) (T, error) {
	if sink != nil {
		*sink = append(*sink, n.Notifications...)
	}
	return n.Value, n.Err
}

// TryExtend appends the notifications to sink only when the operation
// succeeded. On failure they stay attached to the result so a later Factor
// can still deliver them.
func (n Notified[T]) TryExtend(sink *[]ledger.Notification) (T, error) {
	if n.Err == nil && sink != nil {
		*sink = append(*sink, n.Notifications...)
	}
	return n.Value, n.Err
}
