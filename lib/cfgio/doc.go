// Package cfgio moves configuration trees in and out of store.IDatabase
// instances: JSON and XML import, JSON export and the one-directional diff
// against a JSON document.
//
// Import:
//
// Both formats are first decoded into an ordered document tree, so that
// document order and repeated element names survive (JSON objects are read
// with gjson, which iterates members in document order including
// duplicates; XML is streamed with encoding/xml). The document is then
// inserted with the following rules:
//   - top level members are component names; with the component filter on,
//     unknown components are skipped, otherwise they are created
//   - a leaf member stores its text as a string value
//   - a single child with a given name becomes a scalar, several children
//     with the same name (or the elements of a JSON array) become the
//     indexed array key[0..n]
//   - objects or arrays inside arrays, text on non-leaf elements and member
//     names containing ':' are skipped with a warning
//
// Export:
//
// The JSON export writes nested objects with keys in sorted order. All values
// are strings. An array value is written as a JSON array containing every
// index, gaps as "". An array of size one is written as a scalar, so a single
// element list round-trips as a scalar. Values stored on non-leaf nodes are
// omitted with a warning.
//
// The export reads the database through its public API node by node. It is
// not an atomic snapshot if the database is written concurrently.
package cfgio
