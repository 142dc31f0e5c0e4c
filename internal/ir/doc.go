// Package ir provides the plain-data value model shared by every panopticon
// package.
//
// This package contains value and document types only. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Snapshots hold plain data only: null, string, int, float, bool, array, object
//   - Integral numbers are always IRInt; IRFloat is finite and non-integral
//     (or beyond 2^53), so a number has exactly one representation
//   - Object keys are iterated in RFC 8785 order wherever output is produced
//   - A Document carries its own original snapshot; nothing is injected into Fields
package ir
