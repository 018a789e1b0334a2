// Package testing provides standardised tests and benchmarks for
// storage engines that satisfy the db.ValueDB interface.
//
// Example usage:
//
//	factory := func() db.ValueDB {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunValueDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunValueDBBenchmarks(b, "MyDatabase", factory)
package testing
