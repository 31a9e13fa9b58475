package repository

import (
	"time"

	"github.com/okian/starsim/pkg/logger"
)

// Option applies a configuration option to a store.
type Option func(*storeOptions)

type storeOptions struct {
	log logger.Logger
	now func() time.Time
}

func defaultOptions() storeOptions {
	return storeOptions{now: time.Now}
}

// WithLogger sets the logger used to report loads.
func WithLogger(l logger.Logger) Option {
	return func(o *storeOptions) {
		if l != nil {
			o.log = l.Named("repository")
		}
	}
}

// WithClock sets the clock used to stamp snapshot loads.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}
