package store

// UsageTracker is told about every successful lookup, keyed by entry key.
type UsageTracker interface {
	KeyAccessed(key string)
}

// UsageTrackerFunc adapts a function to a UsageTracker.
type UsageTrackerFunc func(key string)

func (f UsageTrackerFunc) KeyAccessed(key string) {
	f(key)
}
