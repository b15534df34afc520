package maple

import (
	"testing"

	"github.com/kvmkrao/hdf5/lib/db"
	dbtesting "github.com/kvmkrao/hdf5/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunObjectDBTests(t, "MapleDB", func() db.ObjectDB {
		return NewMapleDB(nil)
	})
}

func TestWithPruning(t *testing.T) {
	dbtesting.RunObjectDBTests(t, "MapleDB(retention)", func() db.ObjectDB {
		// a large retention keeps every version the suite reads
		return NewMapleDB(&DBOptions{NumShards: 4, VersionRetention: 1 << 20})
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunObjectDBBenchmarks(b, "MapleDB", func() db.ObjectDB {
		return NewMapleDB(nil)
	})
}
