package dedupe

import (
	"context"

	"github.com/okian/sickbay/pkg/logger"
)

// Group is one player's signals collapsed to a single representative.
type Group[T any] struct {
	Key            int64
	Representative T
	Count          int
}

// Duplicates is the number of signals folded into the representative.
func (g Group[T]) Duplicates() int {
	return g.Count - 1
}

// Aggregate groups items by key, keeping first-seen key order. The
// representative is the first item unless better prefers a later one.
// Items with a zero key are dropped. Duplicate counts are logged.
func Aggregate[T any](ctx context.Context, log logger.Logger, label string, items []T, key func(T) int64, better func(candidate, current T) bool) []Group[T] {
	index := make(map[int64]int, len(items))
	groups := make([]Group[T], 0, len(items))
	dropped := 0

	for _, it := range items {
		k := key(it)
		if k == 0 {
			dropped++
			continue
		}
		i, ok := index[k]
		if !ok {
			index[k] = len(groups)
			groups = append(groups, Group[T]{Key: k, Representative: it, Count: 1})
			continue
		}
		g := &groups[i]
		g.Count++
		if better != nil && better(it, g.Representative) {
			g.Representative = it
		}
	}

	if log != nil {
		for _, g := range groups {
			if g.Count > 1 {
				log.Info(ctx, "duplicate signals collapsed",
					logger.String("kind", label),
					logger.Int64("key", g.Key),
					logger.Int("count", g.Count),
				)
			}
		}
		if dropped > 0 {
			log.Warn(ctx, "signals without a key dropped",
				logger.String("kind", label),
				logger.Int("count", dropped),
			)
		}
		log.Debug(ctx, "aggregation complete",
			logger.String("kind", label),
			logger.Int("raw", len(items)),
			logger.Int("unique", len(groups)),
		)
	}
	return groups
}
