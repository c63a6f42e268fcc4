package evidence

import (
	"github.com/okian/sickbay/internal/domain/dedupe"
	"github.com/okian/sickbay/pkg/logger"
)

// Option applies a configuration option to the FileSource.
type Option func(*FileSource)

// WithDeduper shares a deduper across reads.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *FileSource) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *FileSource) {
		if l != nil {
			s.logger = l
		}
	}
}
