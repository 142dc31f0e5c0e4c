// Package harness runs YAML scenarios against a watched document.
//
// A scenario declares a rules tree, an initial document and a sequence of
// steps that edit, save and reload it. Every step runs through the real
// store and watcher on a fresh in-memory database, so a scenario exercises
// the same hooks a production save does. Handlers bound to the "record"
// action append to the scenario trace; expectations and assertions are
// checked against that trace, and RunWithGolden compares it with a golden
// file.
//
// Scenarios are deterministic: cycle tokens come from a fixed generator and
// cycle numbers from a resettable clock.
package harness
