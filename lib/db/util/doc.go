// Package util holds helpers shared by ValueDB engines and the transports:
// a seeded FNV-1a string hash, a random seed generator, the sampling
// statistics (SizeHistogram, DistributionStats) reported by
// db.ValueDB.GetInfo and LockFreeMPSC, the unbounded queue behind
// transport.Dispatcher.
package util
