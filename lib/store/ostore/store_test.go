package ostore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/hooks"
	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourcePrecedence(t *testing.T) {
	tests := []struct {
		name   string
		writes []Source
		want   int32
	}{
		{"component only", []Source{SourceComponent, SourceComponent}, 2},
		{"parameters beat component", []Source{SourceCommandLineParameters, SourceComponent}, 1},
		{"component then parameters", []Source{SourceComponent, SourceCommandLineParameters}, 2},
		{"file beats server", []Source{SourceCommandLineConfigFile, SourceConfigServer}, 1},
		{"parameters beat file", []Source{SourceCommandLineConfigFile, SourceCommandLineParameters}, 2},
		{"server beats component", []Source{SourceConfigServer, SourceComponent}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("root", false, nil)
			for i, src := range tt.writes {
				require.True(t, s.PutFrom(src, "comp:value", db.IntCell(int32(i+1))))
			}
			s.FinishInitialization()

			v, ok := store.GetInt(s, "comp:value", 0)
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestReadsBeforeInit(t *testing.T) {
	s := New("root", false, nil)
	assert.Equal(t, StateInitializing, s.State())

	s.PutFrom(SourceCommandLineParameters, "comp:flag", db.BoolCell(false))
	s.Put("comp:flag", db.BoolCell(true))

	b, ok := store.GetBool(s, "comp:flag", false)
	require.True(t, ok)
	assert.True(t, b, "reads only see the component source before init")

	s.FinishInitialization()
	assert.True(t, s.IsInitFinished())

	b, ok = store.GetBool(s, "comp:flag", true)
	require.True(t, ok, "merged bool is stored as string 0")
	assert.False(t, b)
}

func TestHooksAfterInit(t *testing.T) {
	s := New("root", false, nil)

	var mu sync.Mutex
	var changed []string
	id := s.AddChangeHook(func(key string) bool {
		mu.Lock()
		defer mu.Unlock()
		changed = append(changed, key)
		return true
	})

	s.Put("comp:a", db.IntCell(1))
	require.NoError(t, s.InsertJSON(`{"comp":{"b":"2"}}`))
	assert.Empty(t, changed, "no hooks before init")

	s.FinishInitialization()

	s.PutFrom(SourceCommandLineParameters, "comp:a", db.IntCell(3))
	require.NoError(t, s.InsertJSONFrom(SourceConfigServer, `{"comp":{"c":"4"}}`))
	assert.Equal(t, []string{"comp:a", hooks.FullConfigKey}, changed)

	v, _ := store.GetInt(s, "comp:a", 0)
	assert.Equal(t, int32(3), v, "after init every source writes the merged tree")

	// rejected writes do not fire
	s.Put("comp::bad", db.IntCell(1))
	assert.Len(t, changed, 2)

	s.SetHooksActive(false)
	assert.False(t, s.HooksActive())
	s.Put("comp:a", db.IntCell(5))
	assert.Len(t, changed, 2)

	s.SetHooksActive(true)
	assert.True(t, s.RemoveChangeHook(id))
	s.Put("comp:a", db.IntCell(6))
	assert.Len(t, changed, 2)
}

func TestHookCanReadStore(t *testing.T) {
	s := New("root", false, nil)
	s.FinishInitialization()

	var seen int32
	s.AddChangeHook(func(key string) bool {
		seen, _ = store.GetInt(s, key, -1)
		return true
	})

	s.Put("comp:a", db.IntCell(42))
	assert.Equal(t, int32(42), seen)
}

func TestFilter(t *testing.T) {
	s := New("client", true, nil)
	require.True(t, s.AddComponent("mine"))

	assert.False(t, s.PutFrom(SourceCommandLineParameters, "other:x", db.IntCell(1)))
	assert.True(t, s.PutFrom(SourceCommandLineParameters, "mine:x", db.IntCell(1)))
	require.NoError(t, s.InsertJSONFrom(SourceConfigServer, `{"mine":{"y":"2"},"other":{"z":"3"}}`))

	s.FinishInitialization()
	assert.Equal(t, []string{"mine"}, s.ComponentNames())
	assert.True(t, s.Exists("mine:y"))

	s.DisableFilterByComponent()
	assert.False(t, s.FilterByComponent())
	assert.True(t, s.Put("other:x", db.IntCell(1)))
	assert.True(t, s.HasComponent("other"))

	s.SetFilterByComponent(true)
	assert.True(t, s.FilterByComponent())
}

func TestPutCfgFromSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"comp":{"port":"80","hosts":["a","b"]}}`), 0o644))

	s := New("root", false, nil)
	require.NoError(t, s.PutCfgFrom(SourceCommandLineConfigFile, path))
	assert.False(t, s.Exists("comp:port"))

	s.FinishInitialization()
	assert.True(t, s.IsList("comp:hosts"))
	assert.False(t, s.IsList("comp:port"))

	js, ok := s.ComponentJSON("comp", false)
	require.True(t, ok)
	assert.Equal(t, `{"comp":{"hosts":["a","b"],"port":"80"}}`, js)
	assert.Equal(t, js, s.AllJSON(false))

	assert.Equal(t, `{"comp":{"port":"81"}}`, s.Differences(`{"comp":{"port":"81","hosts":["a","b"]}}`, false))

	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, s.WriteCfg(out, false))
	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, js, string(content))

	s.Clear()
	assert.Empty(t, s.ComponentNames())
}

func TestWaitForResponse(t *testing.T) {
	s := New("root", false, nil)

	t.Run("times out", func(t *testing.T) {
		start := time.Now()
		s.WaitForResponse(50 * time.Millisecond)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("flag set before wait", func(t *testing.T) {
		s.SetWaitForResponseFlag()
		start := time.Now()
		s.WaitForResponse(time.Second)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("reset drops the flag", func(t *testing.T) {
		s.SetWaitForResponseFlag()
		s.ResetWaitForResponseFlag()
		start := time.Now()
		s.WaitForResponse(50 * time.Millisecond)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("flag set while waiting", func(t *testing.T) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			s.SetWaitForResponseFlag()
		}()
		start := time.Now()
		s.WaitForResponse(5 * time.Second)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("close wakes all waiters", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.WaitForResponse(10 * time.Second)
			}()
		}
		time.Sleep(20 * time.Millisecond)
		start := time.Now()
		s.Close()
		s.Close()
		wg.Wait()
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestParseSource(t *testing.T) {
	for src := SourceComponent; src < numSources; src++ {
		parsed, ok := ParseSource(src.String())
		require.True(t, ok)
		assert.Equal(t, src, parsed)
	}
	_, ok := ParseSource("nope")
	assert.False(t, ok)
	assert.Equal(t, "Finalized", StateFinalized.String())
}

func TestSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.snap")

	s := New("root", false, nil)
	s.FinishInitialization()
	s.Put("comp:a", db.IntCell(1))
	s.Put("comp:list[1]", db.StringCell("x"))
	require.NoError(t, s.SaveSnapshot(path))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is renamed")

	restored := New("root", false, nil)
	restored.FinishInitialization()
	var fired []string
	restored.AddChangeHook(func(key string) bool {
		fired = append(fired, key)
		return true
	})
	restored.Put("other:b", db.IntCell(2))

	require.NoError(t, restored.LoadSnapshot(path))
	assert.Equal(t, []string{"other:b", hooks.FullConfigKey}, fired)
	assert.Equal(t, []string{"comp"}, restored.ComponentNames())
	assert.Equal(t, s.AllJSON(false), restored.AllJSON(false))
	assert.Contains(t, restored.Info(), "comp")

	assert.ErrorIs(t, restored.LoadSnapshot(filepath.Join(t.TempDir(), "missing")), os.ErrNotExist)
}
