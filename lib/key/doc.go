// Package key parses and validates the colon separated keys used to address
// configuration values.
//
// A key has the shape
//
//	component:node:...:leaf[index]
//
// The first segment names the component the value belongs to. The optional
// bracketed suffix selects one cell of the value array stored at the path; a
// key without suffix addresses index 0.
//
// Two levels of validation exist:
//   - Extract parses the array suffix and is used by every read. A key that
//     fails to parse simply misses.
//   - Check additionally rejects empty, leading, trailing and doubled
//     delimiters and array suffixes on component level keys. It guards every
//     write so that malformed keys never create structure.
//
// Neither function reports an error value: callers log the rejected key and
// treat the operation as a no-op.
package key
