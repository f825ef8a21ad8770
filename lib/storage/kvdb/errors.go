package kvdb

import (
	"errors"
	"strings"
)

var (
	ErrKVNotFound = errors.New("Key not found")
)

// ErrNotFound reports whether err is a key-missing error of any engine
func ErrNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrKVNotFound) {
		return true
	}
	return strings.HasSuffix(err.Error(), "not found")
}

// NormalizedKVError maps engine specific not-found errors to ErrKVNotFound
func NormalizedKVError(err error) error {
	if err == nil {
		return nil
	}
	if ErrNotFound(err) {
		return ErrKVNotFound
	}
	return err
}
