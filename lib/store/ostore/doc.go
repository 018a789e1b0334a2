// Package ostore implements the layered overlay store every process uses to
// collect its configuration during startup.
//
// A Store owns one lstore database per Source:
//
//	Component               values the component itself writes (default)
//	CommandLineParameters   key=value pairs given on the command line
//	CommandLineConfigFile   files given on the command line
//	ConfigServer            the configuration received from the config server
//
// Lifecycle:
//
//	Uninitialized -> Initializing -> Finalized
//
// While Initializing, writes go to the database of the chosen source and no
// hooks run. Reads always use the Component database, so values from other
// sources become visible only after FinishInitialization, which merges the
// sources into the Component database in precedence order (ConfigServer,
// then CommandLineConfigFile, then CommandLineParameters; later sources
// overwrite earlier ones), clears them and finalizes the store.
//
// Once Finalized, every write (from any source) goes to the merged database
// and runs the change hooks with the written key, bulk inserts run them with
// hooks.FullConfigKey. File imports (PutCfg) never run hooks.
//
// The store also carries the response flag used by the sync client to wait
// for replies of the config server (WaitForResponse).
package ostore
