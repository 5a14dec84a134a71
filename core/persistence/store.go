// Package persistence keeps small string values, such as the phone number and
// access token, on the device running the engine.
//
// Absence of a key is not an error: Get reports it through its second return
// value. Backends that cannot store anything in the current environment
// return ErrUnsupported.
package persistence

import (
	"context"
	"errors"
)

var ErrUnsupported = errors.New("this environment does not support saving your details")

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
