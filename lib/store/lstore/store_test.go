package lstore

import (
	"bytes"
	"sort"
	"sync"
	"testing"

	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilteredDatabase(t *testing.T) {
	d := NewLocalStore("root", true, nil)

	assert.False(t, store.PutInt(d, "comp:a", 1), "unknown component must be filtered")
	assert.Empty(t, d.ComponentNames())

	require.True(t, d.AddComponent("comp"))
	assert.False(t, d.AddComponent("comp"), "duplicate component")
	assert.False(t, d.AddComponent("bad:name"))

	require.True(t, store.PutInt(d, "comp:a", 1))
	v, ok := store.GetInt(d, "comp:a", 0)
	require.True(t, ok)
	assert.Equal(t, int32(1), v)

	v, ok = store.GetInt(d, "other:a", 9)
	assert.False(t, ok)
	assert.Equal(t, int32(9), v)
}

func TestUnfilteredDatabase(t *testing.T) {
	d := NewLocalStore("root", false, nil)

	require.True(t, store.PutString(d, "compA:x", "1"))
	require.True(t, store.PutBool(d, "compB:y:z", true))
	assert.False(t, store.PutString(d, "comp[0]:x", "1"), "component with brackets is invalid")

	assert.Equal(t, []string{"compA", "compB"}, d.ComponentNames())
	assert.True(t, d.HasComponent("compB"))
	assert.False(t, d.IsComponentEmpty("compA"))
	assert.True(t, d.IsComponentEmpty("compC"))

	b, ok := store.GetBool(d, "compA:x", false)
	require.True(t, ok, "string 1 reads as bool")
	assert.True(t, b)

	assert.Equal(t, []string{"compA", "compB"}, d.GetChildren("", false))
	assert.Equal(t, []string{"compB:y:z"}, d.GetChildren("compB:y", true))

	// rejected keys leave no component behind
	assert.False(t, store.PutInt(d, "newcomp::x", 1))
	assert.False(t, store.PutInt(d, "other:", 1))
	assert.False(t, store.PutInt(d, "third:list[]", 1))
	assert.Equal(t, []string{"compA", "compB"}, d.ComponentNames())
	assert.False(t, d.HasComponent("newcomp"))
	assert.True(t, d.AddComponent("newcomp"))

	// an opening bracket without a closing one belongs to the node name
	require.True(t, store.PutInt(d, "compA:a[b", 3))
	v, ok := store.GetInt(d, "compA:a[b", 0)
	require.True(t, ok)
	assert.Equal(t, int32(3), v)
}

func TestGetStringList(t *testing.T) {
	d := NewLocalStore("root", false, nil)
	store.PutString(d, "comp:list[0]", "a")
	store.PutInt(d, "comp:list[1]", 2)
	store.PutFloat(d, "comp:list[3]", 2.5)

	list, ok := d.GetStringList("comp:list", nil)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "2", "2.500000"}, list)

	list, ok = d.GetStringList("comp:list[1]", nil)
	require.True(t, ok)
	assert.Equal(t, []string{"2"}, list)

	list, ok = d.GetStringList("comp:none", []string{"def"})
	assert.False(t, ok)
	assert.Equal(t, []string{"def"}, list)

	assert.True(t, store.IsList(d, "comp:list"))
	info, ok := d.KeyInfo("comp:list")
	require.True(t, ok)
	assert.Equal(t, store.KeyInfo{FinalLeaf: true, ArraySize: 4}, info)
}

func TestInsert(t *testing.T) {
	src := NewLocalStore("src", false, nil)
	store.PutInt(src, "compA:a", 1)
	store.PutString(src, "compA:arr[1]", "x")
	store.PutInt(src, "compB:b", 2)

	t.Run("filtered target skips unknown components", func(t *testing.T) {
		dst := NewLocalStore("dst", true, nil)
		dst.AddComponent("compA")
		store.PutInt(dst, "compA:keep", 5)

		dst.Insert(src)

		assert.Equal(t, []string{"compA"}, dst.ComponentNames())
		v, ok := store.GetInt(dst, "compA:a", 0)
		require.True(t, ok)
		assert.Equal(t, int32(1), v)
		s, ok := store.GetString(dst, "compA:arr[1]", "")
		require.True(t, ok)
		assert.Equal(t, "x", s)
		_, ok = store.GetInt(dst, "compA:keep", 0)
		assert.True(t, ok, "insert merges, it does not replace")
	})

	t.Run("unfiltered target creates components", func(t *testing.T) {
		dst := NewLocalStore("dst", false, nil)
		dst.Insert(src)
		assert.Equal(t, []string{"compA", "compB"}, dst.ComponentNames())

		// values are merged as strings
		c, ok := dst.Get("compB:b", db.Unset())
		require.True(t, ok)
		assert.Equal(t, db.StringCell("2"), c)
	})

	t.Run("self insert is a no-op", func(t *testing.T) {
		src.Insert(src)
		data, ok := src.ComponentData("compA")
		require.True(t, ok)
		assert.Len(t, data, 2)
	})
}

func TestTraverseAndData(t *testing.T) {
	d := NewLocalStore("root", false, nil)
	store.PutInt(d, "b:x", 1)
	store.PutInt(d, "a:y", 2)

	var keys []string
	d.Traverse("", func(k, _ string) { keys = append(keys, k) })
	assert.Equal(t, []string{"b:x", "a:y"}, keys, "components in creation order")

	data, ok := d.ComponentData("a")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"a:y": "2"}, data)

	_, ok = d.ComponentData("zzz")
	assert.False(t, ok)

	d.Clear()
	assert.Empty(t, d.ComponentNames())
	assert.False(t, d.Exists("a:y"))
}

func TestConcurrentAccess(t *testing.T) {
	d := NewLocalStore("root", false, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			comp := []string{"a", "b", "c", "d"}[w%4]
			for i := 0; i < 100; i++ {
				store.PutInt(d, comp+":k", int32(i))
				store.GetInt(d, comp+":k", 0)
				d.Traverse("", func(string, string) {})
			}
		}(w)
	}
	wg.Wait()

	names := d.ComponentNames()
	sort.Strings(names)
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}

func TestSnapshot(t *testing.T) {
	d := NewLocalStore("root", false, nil)
	require.True(t, store.PutString(d, "compB:x", "b"))
	require.True(t, store.PutInt(d, "compA:list[1]", 7))
	require.True(t, store.PutBool(d, "compA:flag", true))

	var buf bytes.Buffer
	require.NoError(t, d.Save(&buf))

	// the filter does not apply to snapshots
	loaded := NewLocalStore("root", true, nil)
	require.True(t, loaded.AddComponent("stale"))
	require.NoError(t, loaded.Load(bytes.NewReader(buf.Bytes())))

	assert.Equal(t, []string{"compB", "compA"}, loaded.ComponentNames())
	for _, name := range d.ComponentNames() {
		want, _ := d.ComponentData(name)
		got, ok := loaded.ComponentData(name)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	info, ok := loaded.KeyInfo("compA:list")
	require.True(t, ok)
	assert.Equal(t, 2, info.ArraySize)

	// corrupt snapshots are rejected and keep the current state
	for _, data := range [][]byte{
		[]byte("NOTASNAP\x00\x00\x00\x00"),
		buf.Bytes()[:buf.Len()-1],
	} {
		assert.Error(t, loaded.Load(bytes.NewReader(data)))
	}
	assert.Equal(t, []string{"compB", "compA"}, loaded.ComponentNames())

	stats := loaded.Info()
	require.Len(t, stats, 2)
	assert.Equal(t, db.ImplMaple, stats["compA"].DbType)
}
