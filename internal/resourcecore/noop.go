package resourcecore

// NoopBreaker is a pass-through Breaker that never rejects and never
// reports activity: the shape the engine substitutes for every configured
// breaker when RESILIENCE_DISABLE_ALL or RESILIENCE_DISABLE_CIRCUIT_BREAKER
// is set, so callers get the same Acquire contract with zero protection
// overhead.
type NoopBreaker struct{}

func (NoopBreaker) RequestAllowed() bool { return true }
func (NoopBreaker) MarkSuccess()         {}
func (NoopBreaker) MarkFailed(error)     {}
func (NoopBreaker) Open() bool           { return false }
func (NoopBreaker) Closed() bool         { return true }
func (NoopBreaker) HalfOpen() bool       { return false }
func (NoopBreaker) InUse() bool          { return false }
func (NoopBreaker) Reset()               {}
func (NoopBreaker) Close() error         { return nil }
