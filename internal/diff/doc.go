// Package diff models the structural difference between two document
// snapshots and computes it.
//
// The encoding is the jsondiffpatch delta format:
//
//	[new]            property added
//	[old, new]       property updated
//	[old, 0, 0]      property deleted
//	{"k": <delta>}   nested object changed
//	{"_t": "a", ...} array changed; "i" keys address the new array,
//	                 "_i" keys the old one, ["", j, 3] marks a move
//
// Trees are a closed set of node types (Record, Object, *Array) so callers
// switch on the variant instead of probing shapes.
package diff
