// Package cmd implements the dcfg command-line interface.
//
// The subpackages hold the command groups:
//
//   - serve: runs a config server
//   - hub: runs the relay the tcp and unix transports connect to
//   - cfg: a config client for reading and writing values (get, put, dump, ...)
//     plus a benchmark of the local store
//   - util: flag, environment and transport helpers (internal use)
//
// Every flag can also be set through an environment variable DCFG_<FLAG>,
// .env and .env.local files are loaded on startup. See dcfg --help for a list
// of all commands.
package cmd
