package provider

import "errors"

// ErrUnavailable wraps every failure to obtain data from the provider.
var ErrUnavailable = errors.New("provider unavailable")
