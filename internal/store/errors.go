package store

import (
	"errors"
	"fmt"
)

var (
	ErrPersistence = errors.New("vector store failure")

	// ErrCollectionNotFound is returned by a Repository whose collection has
	// not been created yet.
	ErrCollectionNotFound = errors.New("collection not found")
)

// PersistenceError wraps a backend failure with the store operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
