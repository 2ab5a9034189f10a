package config

import "errors"

// ErrInvalidConfig is returned when validation fails.
// The wrapped message lists every problem found.
var ErrInvalidConfig = errors.New("config: invalid configuration")
