package keyvalue

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("key not found")
	ErrInvalidValue = errors.New("invalid value")
)

// Store is a durable key-value store for booleans and integers. Boolean and
// integer values live in separate namespaces, so the same key may hold one of
// each.
type Store interface {
	// GetBool returns the boolean stored under key, or ErrNotFound.
	GetBool(ctx context.Context, key string) (bool, error)

	// SetBool stores value under key, replacing any previous boolean.
	SetBool(ctx context.Context, key string, value bool) error

	// GetInt returns the integer stored under key, or ErrNotFound.
	GetInt(ctx context.Context, key string) (int64, error)

	// SetInt stores value under key, replacing any previous integer.
	//
	// ErrInvalidValue is returned for negative values.
	SetInt(ctx context.Context, key string, value int64) error
}

// BoolOrDefault reads a boolean, falling back to def when the key is absent or
// the read fails. The read error, if any, is returned alongside so the caller
// can log it.
func BoolOrDefault(ctx context.Context, s Store, key string, def bool) (bool, error) {
	v, err := s.GetBool(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	} else if err != nil {
		return def, err
	}
	return v, nil
}

// IntOrDefault is the integer counterpart of BoolOrDefault.
func IntOrDefault(ctx context.Context, s Store, key string, def int64) (int64, error) {
	v, err := s.GetInt(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	} else if err != nil {
		return def, err
	}
	return v, nil
}
