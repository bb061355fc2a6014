package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilRemoteCacheIsANoOp(t *testing.T) {
	var r *remoteCache

	_, ok := r.get("some.slug")
	assert.False(t, ok)

	assert.NotPanics(t, func() { r.set("some.slug", "value") })
	assert.NotPanics(t, func() { r.delete("some.slug") })
	assert.NoError(t, r.Close())
}

func TestSessionWithoutRemoteCacheNeverDialsRedis(t *testing.T) {
	session := newTestSession(t)
	assert.Nil(t, session.remote)

	session.cacheSet("main.greet", "hi")
	v, ok := session.cacheGet("main.greet")
	assert.True(t, ok)
	assert.Equal(t, "hi", v)

	session.cacheDelete("main.greet")
	_, ok = session.cacheGet("main.greet")
	assert.False(t, ok)
}
