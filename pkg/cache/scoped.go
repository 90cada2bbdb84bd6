package cache

// ScopedKeyer wraps a Keyer with a prefix, giving each environment its own
// namespace in a shared backend.
//
//	staging := NewScopedKeyer(NewDefaultKeyer(), "staging:")
//	staging.ReportKey("42") // "staging:report:42"
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// A nil inner keyer means the default keyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) ReportKey(jobID string) string {
	return k.prefix + k.inner.ReportKey(jobID)
}

func (k *ScopedKeyer) LatestKey(kind string) string {
	return k.prefix + k.inner.LatestKey(kind)
}
