// Package dispatch correlates a rules tree with a diff tree and calls the
// handlers for exactly the paths that changed.
//
// A rules tree mirrors the document: every key maps to a Handler (a leaf)
// or to a nested Group. Dispatch walks the rules, looks each key up in the
// diff, and then
//
//   - Handler + array diff:  handler gets ArrayChange, the diff untouched
//   - Handler + other node:  handler gets the decoded Set or Deleted value
//   - Group + nested diff:   recurse
//   - Group + array diff:    skipped; a group cannot address array items
//   - Group + change record: InvalidDiffShapeError
//
// Keys without a diff entry are not dispatched; diff entries without a rule
// are ignored. Errors abort the cycle: remaining keys are not visited.
//
// Dispatch is synchronous and holds no state between calls. Handlers may
// start asynchronous work; the dispatcher does not wait for it.
package dispatch
