package models

import "errors"

// ErrValidation marks request validation failures. App layers wrap it so the
// HTTP layer can answer 400.
var ErrValidation = errors.New("validation failed")
