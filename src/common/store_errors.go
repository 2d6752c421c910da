package common

import "fmt"

// StoreErrType classifies errors produced by storage backends.
type StoreErrType uint32

const (
	// KeyNotFound is returned when a key is absent from the store. Callers
	// use it to fall back to the network instead of failing.
	KeyNotFound StoreErrType = iota
	// KeyAlreadyExists is returned when inserting over an existing key.
	KeyAlreadyExists
	// Empty is returned when reading from an empty collection.
	Empty
	// NoValidatorSet is returned when a store has no validator-set recorded.
	NoValidatorSet
)

// StoreErr wraps a storage error with the data type and key involved.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr ...
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error ...
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case KeyAlreadyExists:
		m = "Key Already Exists"
	case Empty:
		m = "Empty"
	case NoValidatorSet:
		m = "No ValidatorSet"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsStore checks that an error is of type StoreErr and that its code matches
// the provided StoreErr code.
func IsStore(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
