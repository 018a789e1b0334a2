package maple

import (
	"testing"

	"github.com/ValentinKolb/dCfg/lib/db"
	dbtesting "github.com/ValentinKolb/dCfg/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunValueDBTests(t, "MapleDB", func() db.ValueDB {
		return NewMapleDB(nil)
	})

	dbtesting.RunValueDBTests(t, "MapleDB(1 shard)", Factory(&DBOptions{NumShards: 1}))
}

func TestGetInfo(t *testing.T) {
	database := NewMapleDB(&DBOptions{NumShards: 4})
	defer database.Close()

	for i := 0; i < 100; i++ {
		database.Put("comp:arr", i, db.IntCell(int32(i)))
	}
	database.Put("comp:single", 0, db.StringCell("x"))

	info := database.GetInfo()
	if info.DbType != db.ImplMaple {
		t.Errorf("Expected db type %s, got %s", db.ImplMaple, info.DbType)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("Expected a positive size estimate, got %d", info.SizeBytes)
	}
	if !database.SupportsFeature(db.FeatureArrays | db.FeatureSave) {
		t.Errorf("Expected maple to support arrays and snapshots")
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunValueDBBenchmarks(b, "MapleDB", func() db.ValueDB {
		return NewMapleDB(nil)
	})
}
