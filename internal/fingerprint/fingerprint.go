package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Manager derives client fingerprints for rate-limit bucketing and audit
// partitioning. The sha256 client id keeps raw IP/user-agent pairs out of the
// counter tables; murmur3 provides cheap coarse buckets.
type Manager struct {
	eventBuckets int
	hasherPool   sync.Pool
}

func NewManager(eventBuckets int) *Manager {
	if eventBuckets <= 0 {
		eventBuckets = 64
	}

	m := &Manager{eventBuckets: eventBuckets}
	m.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}
	return m
}

// ClientID returns the sha256 hex digest of ip+userAgent, the client_id used
// by the event-log limiter and reaction/report dedup.
func (m *Manager) ClientID(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + userAgent))
	return hex.EncodeToString(sum[:])
}

// IPKey returns the sha256 hex digest of the IP alone, used by the
// session-window limiter, which buckets callers by address and nothing else.
func (m *Manager) IPKey(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

// UserAgentHash hashes the user agent for the rate_limits audit columns.
func (m *Manager) UserAgentHash(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])
}

// EventBucket maps an identifier onto a stable bucket in [0, eventBuckets).
func (m *Manager) EventBucket(identifier string) int {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(identifier))
	return int(hasher.Sum64() % uint64(m.eventBuckets))
}
