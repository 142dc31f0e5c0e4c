// Package watch attaches a rules tree to a document schema.
//
// Attach registers two hooks. BeforeLoad captures the original snapshot of
// a document as it comes out of storage; AfterSave diffs that snapshot
// against the saved fields and dispatches the result. Each dispatch is one
// cycle, stamped with a token and a logical sequence number that handlers
// can read with CycleFromContext.
package watch
