package auth

import (
	"time"

	"github.com/maypok86/otter"
)

// NonceLedger is the bounded in-memory replay ledger. Entries expire after
// the TTL; when the capacity cap is hit the cache evicts old entries so the
// bound always holds. The ledger is not durable: a restart clears it, and
// the timestamp window bounds the replay exposure to one minute.
type NonceLedger struct {
	cache otter.Cache[string, struct{}]
}

// NewNonceLedger builds a ledger capped at maxEntries. The TTL should be at
// least twice the timestamp window.
func NewNonceLedger(maxEntries int, ttl time.Duration) (*NonceLedger, error) {
	cache, err := otter.MustBuilder[string, struct{}](maxEntries).
		Cost(func(_ string, _ struct{}) uint32 { return 1 }).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &NonceLedger{cache: cache}, nil
}

// Consume atomically records the nonce. It returns true when this call
// inserted it, false when the nonce was already present (a replay). Two
// concurrent calls with the same nonce cannot both return true.
func (l *NonceLedger) Consume(nonce string) bool {
	return l.cache.SetIfAbsent(nonce, struct{}{})
}

// Size returns the current number of recorded nonces.
func (l *NonceLedger) Size() int {
	return l.cache.Size()
}

// Close releases the cache's internal resources.
func (l *NonceLedger) Close() {
	l.cache.Close()
}
