package reconcile

import "github.com/okian/sickbay/pkg/logger"

// Option applies a configuration option to the DecisionReconciler.
type Option func(*DecisionReconciler)

// WithUpdateThreshold sets the confidence an active record needs to be overwritten.
func WithUpdateThreshold(v float64) Option {
	return func(r *DecisionReconciler) {
		if v >= 0 && v <= 1 {
			r.updateThreshold = v
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *DecisionReconciler) {
		if l != nil {
			r.logger = l
		}
	}
}
