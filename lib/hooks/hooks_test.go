package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.Active())

	var calls []string
	id1 := r.Add(func(key string) bool {
		calls = append(calls, "1:"+key)
		return true
	})
	id2 := r.Add(func(key string) bool {
		calls = append(calls, "2:"+key)
		return false
	})
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, r.Len())

	r.Fire("comp:a")
	assert.Equal(t, []string{"1:comp:a", "2:comp:a"}, calls)

	r.SetActive(false)
	r.Fire("comp:b")
	assert.Len(t, calls, 2, "inactive registry must not fire")
	r.SetActive(true)

	assert.True(t, r.Remove(id1))
	assert.False(t, r.Remove(id1), "removing twice is a no-op")
	assert.False(t, r.Remove(12345))

	r.Fire(FullConfigKey)
	assert.Equal(t, "2:"+FullConfigKey, calls[len(calls)-1])
	assert.Len(t, calls, 3)

	id3 := r.Add(func(string) bool { return true })
	assert.Greater(t, id3, id2, "ids are never reused")
}

func TestHookMayModifyRegistry(t *testing.T) {
	r := NewRegistry()
	var id uint64
	fired := 0
	id = r.Add(func(string) bool {
		fired++
		r.Remove(id)
		r.Add(func(string) bool { return true })
		return true
	})

	r.Fire("x")
	r.Fire("x")
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, r.Len())
}
