package registry

import "errors"

// ErrInvalidRecord is returned when a record cannot be tagged.
var ErrInvalidRecord = errors.New("invalid tag record")
