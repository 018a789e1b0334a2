package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dCfg/lib/db"
)

// RunValueDBTests runs a comprehensive test suite for a ValueDB implementation.
func RunValueDBTests(t *testing.T, name string, factory db.Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("ArrayGrowth", func(t *testing.T) {
			testArrayGrowth(t, factory())
		})

		t.Run("TypeChange", func(t *testing.T) {
			testTypeChange(t, factory())
		})

		t.Run("ValuesAreCopies", func(t *testing.T) {
			testValuesAreCopies(t, factory())
		})

		t.Run("Exists", func(t *testing.T) {
			testExists(t, factory())
		})

		t.Run("Delete&Clear", func(t *testing.T) {
			testDeleteClear(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("Concurrency", func(t *testing.T) {
			testConcurrency(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.ValueDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func expectCell(t *testing.T, database db.ValueDB, path string, idx int, want db.Cell) {
	t.Helper()
	got, ok := database.Get(path, idx)
	if !ok {
		t.Fatalf("Expected %s[%d] to exist", path, idx)
	}
	if got != want {
		t.Errorf("Expected %s[%d] = %#v, got %#v", path, idx, want, got)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.ValueDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	database.Put("comp:a", 0, db.IntCell(1))
	expectCell(t, database, "comp:a", 0, db.IntCell(1))

	database.Put("comp:a", 0, db.IntCell(2))
	expectCell(t, database, "comp:a", 0, db.IntCell(2))

	if _, ok := database.Get("comp:missing", 0); ok {
		t.Errorf("Expected missing path to return loaded=false")
	}
	if _, ok := database.Get("comp:a", 1); ok {
		t.Errorf("Expected out of range index to return loaded=false")
	}
	if n := database.Len(); n != 1 {
		t.Errorf("Expected Len()=1, got %d", n)
	}
}

func testArrayGrowth(t *testing.T, database db.ValueDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureArrays)

	database.Put("comp:arr", 3, db.StringCell("three"))
	if size := database.Size("comp:arr"); size != 4 {
		t.Fatalf("Expected size 4, got %d", size)
	}

	for i := 0; i < 3; i++ {
		cell, ok := database.Get("comp:arr", i)
		if !ok {
			t.Errorf("Expected gap cell %d to be in range", i)
		}
		if !cell.IsUnset() {
			t.Errorf("Expected gap cell %d to be unset, got %#v", i, cell)
		}
	}
	expectCell(t, database, "comp:arr", 3, db.StringCell("three"))

	// writing inside the array must not shrink it
	database.Put("comp:arr", 1, db.FloatCell(2.5))
	if size := database.Size("comp:arr"); size != 4 {
		t.Errorf("Expected size to stay 4, got %d", size)
	}
	expectCell(t, database, "comp:arr", 1, db.FloatCell(2.5))
}

func testTypeChange(t *testing.T, database db.ValueDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	database.Put("comp:v", 0, db.BoolCell(true))
	database.Put("comp:v", 0, db.StringCell("now a string"))
	expectCell(t, database, "comp:v", 0, db.StringCell("now a string"))
}

func testValuesAreCopies(t *testing.T, database db.ValueDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureArrays)

	database.Put("comp:arr", 0, db.IntCell(1))
	database.Put("comp:arr", 1, db.IntCell(2))

	values, ok := database.Values("comp:arr")
	if !ok || len(values) != 2 {
		t.Fatalf("Expected two values, got %v (%v)", values, ok)
	}
	values[0] = db.StringCell("modified")

	expectCell(t, database, "comp:arr", 0, db.IntCell(1))

	if _, ok := database.Values("comp:missing"); ok {
		t.Errorf("Expected Values of missing path to return loaded=false")
	}
}

func testExists(t *testing.T, database db.ValueDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	database.Put("comp:arr", 2, db.IntCell(1))

	if !database.Exists("comp:arr", 2) {
		t.Errorf("Expected comp:arr[2] to exist")
	}
	if database.Exists("comp:arr", 0) {
		t.Errorf("Expected unset gap comp:arr[0] not to exist")
	}
	if database.Exists("comp:arr", 5) {
		t.Errorf("Expected out of range comp:arr[5] not to exist")
	}
	if database.Exists("comp:none", 0) {
		t.Errorf("Expected missing path not to exist")
	}
}

func testDeleteClear(t *testing.T, database db.ValueDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureDelete|db.FeatureClear)

	for i := 0; i < 10; i++ {
		database.Put(fmt.Sprintf("comp:k%d", i), 0, db.IntCell(int32(i)))
	}

	database.Delete("comp:k0")
	if database.Size("comp:k0") != 0 {
		t.Errorf("Expected deleted path to be gone")
	}
	if n := database.Len(); n != 9 {
		t.Errorf("Expected Len()=9 after delete, got %d", n)
	}

	database.Clear()
	if n := database.Len(); n != 0 {
		t.Errorf("Expected Len()=0 after clear, got %d", n)
	}
}

func testSaveLoad(t *testing.T, factory db.Factory) {
	src := factory()
	defer src.Close()

	requireFeature(t, src, db.FeatureSave|db.FeatureLoad)

	src.Put("comp:bool", 0, db.BoolCell(true))
	src.Put("comp:int", 0, db.IntCell(-42))
	src.Put("comp:float", 0, db.FloatCell(1.25))
	src.Put("comp:arr", 2, db.StringCell("c"))
	src.Put("comp:arr", 0, db.StringCell("a"))

	var buf bytes.Buffer
	if err := src.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	dst := factory()
	defer dst.Close()
	dst.Put("comp:stale", 0, db.IntCell(1))

	if err := dst.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	expectCell(t, dst, "comp:bool", 0, db.BoolCell(true))
	expectCell(t, dst, "comp:int", 0, db.IntCell(-42))
	expectCell(t, dst, "comp:float", 0, db.FloatCell(1.25))
	expectCell(t, dst, "comp:arr", 0, db.StringCell("a"))
	expectCell(t, dst, "comp:arr", 2, db.StringCell("c"))
	expectCell(t, dst, "comp:arr", 1, db.Unset())

	if dst.Size("comp:stale") != 0 {
		t.Errorf("Expected Load to replace the previous content")
	}

	if err := dst.Load(bytes.NewReader([]byte("garbage!"))); err == nil {
		t.Errorf("Expected Load of invalid data to fail")
	}
}

func testConcurrency(t *testing.T, database db.ValueDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureArrays)

	const (
		workers = 8
		writes  = 200
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				// every worker owns one index of a shared array
				database.Put("comp:shared", w, db.IntCell(int32(i)))
				database.Put(fmt.Sprintf("comp:w%d", w), i, db.IntCell(int32(i)))
				database.Get("comp:shared", w)
			}
		}(w)
	}
	wg.Wait()

	if size := database.Size("comp:shared"); size != workers {
		t.Fatalf("Expected shared array size %d, got %d", workers, size)
	}
	for w := 0; w < workers; w++ {
		expectCell(t, database, "comp:shared", w, db.IntCell(writes-1))
		if size := database.Size(fmt.Sprintf("comp:w%d", w)); size != writes {
			t.Errorf("Expected worker array size %d, got %d", writes, size)
		}
	}
}

func testEdgeCases(t *testing.T, database db.ValueDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	// empty path and negative index
	database.Put("", 0, db.StringCell("root"))
	expectCell(t, database, "", 0, db.StringCell("root"))

	database.Put("comp:neg", -1, db.IntCell(1))
	if database.Size("comp:neg") != 0 {
		t.Errorf("Expected negative index to be ignored")
	}
	if _, ok := database.Get("comp:neg", -1); ok {
		t.Errorf("Expected negative index read to fail")
	}

	// storing an unset cell keeps the slot but it does not exist
	database.Put("comp:unset", 0, db.Unset())
	if database.Size("comp:unset") != 1 || database.Exists("comp:unset", 0) {
		t.Errorf("Expected explicit unset cell to occupy a slot without existing")
	}

	info := database.GetInfo()
	if len(info.SupportedFeatures) == 0 {
		t.Errorf("Expected GetInfo to report features")
	}
}
