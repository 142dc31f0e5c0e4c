package ir

import "strings"

// Document is the per-instance context of a persisted document.
//
// Fields holds the current plain data. The original snapshot is kept apart
// from Fields so it can never leak into a diff or into storage:
//   - CaptureOriginal sets it (the before-load hook)
//   - Original reads it (the after-save hook); nothing ever clears it
type Document struct {
	Collection string   `json:"collection"`
	ID         string   `json:"id"`
	Version    int64    `json:"version"`
	Fields     IRObject `json:"fields"`

	original    IRObject
	hasOriginal bool
}

// NewDocument creates a document with the given fields. A nil fields map is
// replaced by an empty object.
func NewDocument(collection, id string, fields IRObject) *Document {
	if fields == nil {
		fields = IRObject{}
	}
	return &Document{
		Collection: collection,
		ID:         id,
		Fields:     fields,
	}
}

// CaptureOriginal stores a deep snapshot of the current fields as the
// document's original state.
func (d *Document) CaptureOriginal() {
	d.original = SnapshotObject(d.Fields)
	d.hasOriginal = true
}

// Original returns the snapshot taken by CaptureOriginal.
// ok is false if the document never went through a load.
func (d *Document) Original() (snapshot IRObject, ok bool) {
	return d.original, d.hasOriginal
}

// Snapshot returns a deep copy of the document's current fields.
func (d *Document) Snapshot() IRObject {
	return SnapshotObject(d.Fields)
}

// SplitPath splits a dotted field path. The empty path yields nil.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get returns the value at a dotted path such as "address.line1".
func (d *Document) Get(path string) (IRValue, bool) {
	var cur IRValue = d.Fields
	for _, seg := range SplitPath(path) {
		obj, ok := cur.(IRObject)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores v at a dotted path, creating intermediate objects as needed.
// A non-object value standing in the way is replaced.
func (d *Document) Set(path string, v IRValue) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return
	}
	if d.Fields == nil {
		d.Fields = IRObject{}
	}
	obj := d.Fields
	for _, seg := range segs[:len(segs)-1] {
		next, ok := obj[seg].(IRObject)
		if !ok {
			next = IRObject{}
			obj[seg] = next
		}
		obj = next
	}
	obj[segs[len(segs)-1]] = v
}

// Unset removes the value at a dotted path. Missing paths are ignored.
func (d *Document) Unset(path string) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return
	}
	obj := d.Fields
	for _, seg := range segs[:len(segs)-1] {
		next, ok := obj[seg].(IRObject)
		if !ok {
			return
		}
		obj = next
	}
	delete(obj, segs[len(segs)-1])
}
