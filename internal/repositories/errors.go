package repositories

import "errors"

// ErrDuplicate is returned when a unique row already exists.
var ErrDuplicate = errors.New("duplicate row")
