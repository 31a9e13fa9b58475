package simulation

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithMaxSessions bounds the number of live sessions. Non-positive values keep
// the default.
func WithMaxSessions(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxSessions = n
		}
	}
}

// WithEvictionHook is called with the ID of every session evicted to make
// room for a new one. Sessions ended with Drop are not reported.
func WithEvictionHook(fn func(id string)) Option {
	return func(r *Registry) {
		r.onEvict = fn
	}
}
