package evidence

import "errors"

// ErrMalformed marks a line that could not be turned into an evidence item.
var ErrMalformed = errors.New("malformed evidence")
