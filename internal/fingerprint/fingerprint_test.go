package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientID_Deterministic(t *testing.T) {
	m := NewManager(64)

	a := m.ClientID("192.0.2.1", "Mozilla/5.0")
	b := m.ClientID("192.0.2.1", "Mozilla/5.0")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // sha256 hex
}

func TestClientID_SensitiveToBothInputs(t *testing.T) {
	m := NewManager(64)

	base := m.ClientID("192.0.2.1", "Mozilla/5.0")
	assert.NotEqual(t, base, m.ClientID("192.0.2.2", "Mozilla/5.0"))
	assert.NotEqual(t, base, m.ClientID("192.0.2.1", "curl/8.0"))
}

func TestIPKey_IgnoresUserAgent(t *testing.T) {
	m := NewManager(64)
	assert.Equal(t, m.IPKey("192.0.2.1"), m.IPKey("192.0.2.1"))
	assert.NotEqual(t, m.IPKey("192.0.2.1"), m.ClientID("192.0.2.1", "Mozilla/5.0"))
}

func TestEventBucket_Range(t *testing.T) {
	m := NewManager(16)

	for _, id := range []string{"a", "b", "c", "long-identifier-value", ""} {
		bucket := m.EventBucket(id)
		assert.GreaterOrEqual(t, bucket, 0)
		assert.Less(t, bucket, 16)
		// Stable across calls.
		assert.Equal(t, bucket, m.EventBucket(id))
	}
}

func TestNewManager_DefaultsBucketCount(t *testing.T) {
	m := NewManager(0)
	assert.Equal(t, 64, m.eventBuckets)
}
