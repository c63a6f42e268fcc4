package validation

import "github.com/okian/sickbay/pkg/logger"

// Option applies a configuration option to the LineupValidator.
type Option func(*LineupValidator)

// WithFixtureCount sets how many recent completed fixtures are inspected.
func WithFixtureCount(n int) Option {
	return func(v *LineupValidator) {
		if n > 0 {
			v.fixtureCount = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(v *LineupValidator) {
		if l != nil {
			v.logger = l
		}
	}
}
