// Package tree implements the configuration tree of a single component.
//
// A Tree keeps two things apart:
//   - the structural hierarchy: one node per key segment, holding the full
//     key path (including the component segment) and its children in
//     insertion order;
//   - the values: a db.ValueDB that maps each path to an array of typed
//     cells.
//
// The root node of a tree is the component itself, so a key without any
// delimiter addresses a value stored directly at component level.
//
// Traversal only reports leaves (nodes without children). A value written to
// a node that later received children stays in the value store but is not
// visible to Traverse or to the JSON export.
//
// A Tree is not safe for concurrent use. The multi-component database in
// lib/store/lstore serializes all access.
package tree
