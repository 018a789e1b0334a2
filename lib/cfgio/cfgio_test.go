package cfgio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/ValentinKolb/dCfg/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(filter bool) store.IDatabase {
	return lstore.NewLocalStore("test", filter, nil)
}

func TestPutCfgJSON(t *testing.T) {
	d := newDB(false)
	require.NoError(t, PutCfg(d, "testdata/config.json"))

	assert.Equal(t, []string{"CEM200", "pos_int"}, d.ComponentNames())

	port, ok := store.GetInt(d, "CEM200:network:port", 0)
	require.True(t, ok)
	assert.Equal(t, int32(8080), port)

	secure, ok := store.GetBool(d, "CEM200:network:secure", false)
	require.True(t, ok)
	assert.True(t, secure)

	hosts, ok := d.GetStringList("CEM200:network:hosts", nil)
	require.True(t, ok)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, hosts)

	v, ok := store.GetString(d, "pos_int", "")
	require.True(t, ok, "component level scalar")
	assert.Equal(t, "21", v)
}

func TestPutCfgXML(t *testing.T) {
	d := newDB(false)
	require.NoError(t, PutCfg(d, "testdata/config.json"))
	require.NoError(t, PutCfg(d, "testdata/config.xml"))

	version, _ := store.GetString(d, "CEM200:version", "")
	assert.Equal(t, "1.3", version, "xml overwrites json")

	hosts, ok := d.GetStringList("CEM200:network:hosts", nil)
	require.True(t, ok)
	assert.Equal(t, []string{"alpha", "delta", "gamma"}, hosts, "repeated elements become an array")

	ratio, ok := store.GetFloat(d, "CEM200:ratio", 0)
	require.True(t, ok, "values not in the xml are kept")
	assert.Equal(t, float32(2.5), ratio)
}

func TestPutCfgFailures(t *testing.T) {
	d := newDB(false)

	assert.Error(t, PutCfg(d, "testdata/does-not-exist.json"))

	dir := t.TempDir()
	yaml := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yaml, []byte("a: b"), 0o644))
	assert.Error(t, PutCfg(d, yaml))

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"comp": {"a": `), 0o644))
	assert.Error(t, PutCfg(d, broken))

	assert.Empty(t, d.ComponentNames())
}

func TestInsertJSONRules(t *testing.T) {
	d := newDB(false)

	doc := `{
		"comp": {
			"a": "1",
			"bad:name": "x",
			"list": [1, {"nested": true}, 3],
			"dup": "first",
			"dup": "second",
			"empty": {}
		},
		"in[valid]": {"a": 1}
	}`
	require.NoError(t, InsertJSON(d, doc))

	assert.Equal(t, []string{"comp"}, d.ComponentNames())
	assert.False(t, d.Exists("comp:bad"))

	list, ok := d.GetStringList("comp:list", nil)
	require.True(t, ok)
	assert.Equal(t, []string{"1", "3"}, list, "objects inside arrays are skipped")

	dup, ok := d.GetStringList("comp:dup", nil)
	require.True(t, ok)
	assert.Equal(t, []string{"first", "second"}, dup)

	assert.Error(t, InsertJSON(d, `[1, 2]`))
	assert.Error(t, InsertJSON(d, `not json`))
}

func TestInsertFiltered(t *testing.T) {
	d := newDB(true)
	d.AddComponent("pos_int")

	require.NoError(t, PutCfg(d, "testdata/config.json"))
	assert.Equal(t, []string{"pos_int"}, d.ComponentNames())
}

func TestExport(t *testing.T) {
	d := newDB(false)
	store.PutString(d, "comp:simple", "x")
	store.PutString(d, "comp:path:to:value", "v")
	store.PutString(d, "comp:array:to[0]", "1")
	store.PutString(d, "comp:array:to[1]", "2.5")
	store.PutString(d, "comp:array:to[2]", "three")

	want := `{"comp":{"array":{"to":["1","2.5","three"]},"path":{"to":{"value":"v"}},"simple":"x"}}`
	assert.Equal(t, want, AllJSON(d, "", false))

	js, ok := ComponentJSON(d, "comp", false)
	require.True(t, ok)
	assert.Equal(t, want, js)

	_, ok = ComponentJSON(d, "other", false)
	assert.False(t, ok)

	assert.Equal(t, `{"comp":{"path":{"to":{"value":"v"}}}}`, AllJSON(d, "comp:path", false))

	formatted := AllJSON(d, "comp:simple", true)
	assert.Contains(t, formatted, "\n")
	assert.Contains(t, formatted, `"simple": "x"`)
}

func TestExportArraysAndTypes(t *testing.T) {
	d := newDB(false)
	store.PutString(d, "comp:gaps[2]", "c")
	store.PutString(d, "comp:single[0]", "only")
	store.PutFloat(d, "comp:float", 1)
	store.PutBool(d, "comp:bool", true)
	store.PutString(d, "comp:html", "<a&b>")
	// value on a node that also has children is omitted
	store.PutString(d, "comp:node", "hidden")
	store.PutString(d, "comp:node:child", "visible")

	got := AllJSON(d, "", false)
	assert.Equal(t, `{"comp":{"bool":"1","float":"1.000000","gaps":["","","c"],"html":"<a&b>","node":{"child":"visible"},"single":"only"}}`, got)
}

func TestRoundTrip(t *testing.T) {
	src := newDB(false)
	require.NoError(t, PutCfg(src, "testdata/config.json"))

	dst := newDB(false)
	require.NoError(t, InsertJSON(dst, AllJSON(src, "", true)))

	assert.Equal(t, AllJSON(src, "", false), AllJSON(dst, "", false))
}

func TestComponentRoundTrip(t *testing.T) {
	want := map[string]string{
		"CEM200_COH:version":          "0.0.1",
		"CEM200_COH:m_pEmlInputIf[0]": "A",
		"CEM200_COH:m_pEmlInputIf[1]": "B",
	}

	for _, file := range []string{"testdata/cem200_coh.xml", "testdata/cem200_coh.json"} {
		t.Run(filepath.Ext(file), func(t *testing.T) {
			src := newDB(false)
			require.NoError(t, PutCfg(src, file))

			data, ok := src.ComponentData("CEM200_COH")
			require.True(t, ok)
			assert.Equal(t, "0.0.1", data["CEM200_COH:version"])
			assert.Equal(t, want, data)

			doc, ok := ComponentJSON(src, "CEM200_COH", false)
			require.True(t, ok)

			dst := newDB(false)
			require.NoError(t, InsertJSON(dst, doc))
			got, ok := dst.ComponentData("CEM200_COH")
			require.True(t, ok)
			assert.Equal(t, data, got)
		})
	}
}

func TestDifferences(t *testing.T) {
	d := newDB(false)
	store.PutString(d, "comp:same", "1")
	store.PutString(d, "comp:changed", "old")
	store.PutString(d, "comp:only_here", "x")
	store.PutString(d, "comp:list[0]", "a")

	doc := `{"comp":{"same":"1","changed":"new","list":["a","b"],"added":{"deep":"y"}},"other":{"k":"v"}}`
	diff := Differences(d, doc, lstore.NewDatabaseFactory(nil), false)

	assert.Equal(t, `{"comp":{"added":{"deep":"y"},"changed":"new","list[1]":"b"},"other":{"k":"v"}}`, diff)

	// the diff can be imported again
	require.NoError(t, InsertJSON(d, diff))
	assert.Equal(t, `{}`, Differences(d, doc, lstore.NewDatabaseFactory(nil), false))

	assert.Equal(t, `{}`, Differences(d, "broken", lstore.NewDatabaseFactory(nil), false))
}

func TestWriteCfg(t *testing.T) {
	d := newDB(false)
	store.PutString(d, "comp:a", "1")

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteCfg(d, path, true))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "{"))

	loaded := newDB(false)
	require.NoError(t, PutCfg(loaded, path))
	v, _ := store.GetString(loaded, "comp:a", "")
	assert.Equal(t, "1", v)

	assert.Error(t, WriteCfg(d, filepath.Join(t.TempDir(), "out.xml"), false))
}
