package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/dCfg/lib/db"
)

// RunValueDBBenchmarks runs all benchmarks for a ValueDB implementation
func RunValueDBBenchmarks(b *testing.B, name string, factory db.Factory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Put", func(b *testing.B) {
			benchmarkPut(b, factory())
		})

		b.Run("PutArray", func(b *testing.B) {
			benchmarkPutArray(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("Values", func(b *testing.B) {
			benchmarkValues(b, factory())
		})

		b.Run("SaveLoad", func(b *testing.B) {
			benchmarkSaveLoad(b, factory)
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func fill(database db.ValueDB, n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("comp:section%d:key%d", i%16, i)
		database.Put(paths[i], 0, db.StringCell(fmt.Sprintf("value-%d", i)))
	}
	return paths
}

// Parallel benchmark for Put on distinct paths
func benchmarkPut(b *testing.B, database db.ValueDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Put(fmt.Sprintf("comp:key-%d", counter), 0, db.IntCell(int32(counter)))
			counter++
		}
	})
}

// Put into a small set of arrays, exercising the copy on write path
func benchmarkPutArray(b *testing.B, database db.ValueDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureArrays)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Put(fmt.Sprintf("comp:arr%d", counter%8), counter%32, db.FloatCell(float32(counter)))
			counter++
		}
	})
}

func benchmarkGet(b *testing.B, database db.ValueDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet)
	paths := fill(database, 10000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Get(paths[counter%len(paths)], 0)
			counter++
		}
	})
}

func benchmarkValues(b *testing.B, database db.ValueDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet|db.FeatureArrays)
	for i := 0; i < 64; i++ {
		database.Put("comp:list", i, db.IntCell(int32(i)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			database.Values("comp:list")
		}
	})
}

func benchmarkSaveLoad(b *testing.B, factory db.Factory) {
	database := factory()
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSave|db.FeatureLoad)
	fill(database, 10000)

	var snapshot bytes.Buffer
	if err := database.Save(&snapshot); err != nil {
		b.Fatalf("Save failed: %v", err)
	}

	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			if err := database.Save(&buf); err != nil {
				b.Fatalf("Save failed: %v", err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		target := factory()
		defer target.Close()
		for i := 0; i < b.N; i++ {
			if err := target.Load(bytes.NewReader(snapshot.Bytes())); err != nil {
				b.Fatalf("Load failed: %v", err)
			}
		}
	})
}

// 80% reads, 20% writes on a shared key space
func benchmarkMixedUsage(b *testing.B, database db.ValueDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet)
	paths := fill(database, 1000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			path := paths[r.Intn(len(paths))]
			if r.Intn(100) < 80 {
				database.Get(path, 0)
			} else {
				database.Put(path, 0, db.StringCell("updated"))
			}
		}
	})
}
