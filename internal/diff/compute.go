package diff

import (
	"slices"
	"strconv"

	"github.com/roach88/panopticon/internal/ir"
)

// HashFunc returns the identity of an array element. Two composite elements
// with the same identity are treated as the same element across snapshots.
type HashFunc func(ir.IRValue) string

// Option configures Compute.
type Option func(*differ)

// WithObjectHash sets the identity function used to match array elements.
// Default: ir.ElementHash (id, then _id, then full value).
func WithObjectHash(h HashFunc) Option {
	return func(d *differ) {
		if h != nil {
			d.hash = h
		}
	}
}

// WithoutMoveDetection reports reordered elements as removal plus addition
// instead of folding them into move records.
func WithoutMoveDetection() Option {
	return func(d *differ) {
		d.detectMoves = false
	}
}

type differ struct {
	hash        HashFunc
	detectMoves bool
}

// Compute returns the diff tree turning before into after, or nil when the
// two are structurally equal. A nil argument means the value is absent.
func Compute(before, after ir.IRValue, opts ...Option) Node {
	d := &differ{
		hash:        ir.ElementHash,
		detectMoves: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d.diff(before, after)
}

func (d *differ) diff(before, after ir.IRValue) Node {
	switch {
	case before == nil && after == nil:
		return nil
	case before == nil:
		return Added(after)
	case after == nil:
		return Deleted(before)
	case ir.Equal(before, after):
		return nil
	}

	switch b := before.(type) {
	case ir.IRObject:
		if a, ok := after.(ir.IRObject); ok {
			return d.objects(b, a)
		}
	case ir.IRArray:
		if a, ok := after.(ir.IRArray); ok {
			return d.arrays(b, a)
		}
	}
	return Modified(before, after)
}

func (d *differ) objects(before, after ir.IRObject) Node {
	out := Object{}
	for k, b := range before {
		a, ok := after[k]
		if !ok {
			out[k] = Deleted(b)
			continue
		}
		if child := d.diff(b, a); child != nil {
			out[k] = child
		}
	}
	for k, a := range after {
		if _, ok := before[k]; !ok {
			out[k] = Added(a)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// arrays diffs two ordered collections:
//  1. trim the common head and tail (matching by identity, diffing contents)
//  2. pure insertion or pure removal if one side is exhausted
//  3. otherwise LCS over the middle; unmatched old items are removals,
//     unmatched new items are additions, and a removal/addition pair with
//     the same identity becomes a move
func (d *differ) arrays(before, after ir.IRArray) Node {
	out := NewArray()
	len1, len2 := len(before), len(after)

	head := 0
	for head < len1 && head < len2 && d.match(before[head], after[head]) {
		d.nest(out, head, before[head], after[head])
		head++
	}

	tail := 0
	for head+tail < len1 && head+tail < len2 &&
		d.match(before[len1-1-tail], after[len2-1-tail]) {
		d.nest(out, len2-1-tail, before[len1-1-tail], after[len2-1-tail])
		tail++
	}

	switch {
	case head+tail == len1:
		for i := head; i < len2-tail; i++ {
			out.Items[strconv.Itoa(i)] = Added(after[i])
		}

	case head+tail == len2:
		for i := head; i < len1-tail; i++ {
			out.Items[oldKey(i)] = Deleted(before[i])
		}

	default:
		seq1, seq2 := d.lcs(before[head:len1-tail], after[head:len2-tail])

		matched1 := make(map[int]bool, len(seq1))
		for _, i := range seq1 {
			matched1[i+head] = true
		}
		matched2 := make(map[int]int, len(seq2))
		for pos, i := range seq2 {
			matched2[i+head] = seq1[pos] + head
		}

		var removed []int
		for i := head; i < len1-tail; i++ {
			if !matched1[i] {
				out.Items[oldKey(i)] = Deleted(before[i])
				removed = append(removed, i)
			}
		}

		for i := head; i < len2-tail; i++ {
			if from, ok := matched2[i]; ok {
				d.nest(out, i, before[from], after[i])
				continue
			}
			if r := d.findMove(removed, before, after[i]); r >= 0 {
				from := removed[r]
				out.Items[oldKey(from)] = Moved(i)
				d.nest(out, i, before[from], after[i])
				removed = slices.Delete(removed, r, r+1)
				continue
			}
			out.Items[strconv.Itoa(i)] = Added(after[i])
		}
	}

	if out.Len() == 0 {
		return nil
	}
	return out
}

// nest records the content diff of a matched element at its new index.
func (d *differ) nest(out *Array, to int, before, after ir.IRValue) {
	if child := d.diff(before, after); child != nil {
		out.Items[strconv.Itoa(to)] = child
	}
}

// findMove returns the position in removed of an old element matching v,
// or -1.
func (d *differ) findMove(removed []int, before ir.IRArray, v ir.IRValue) int {
	if !d.detectMoves {
		return -1
	}
	for r, from := range removed {
		if d.match(before[from], v) {
			return r
		}
	}
	return -1
}

// match reports whether two elements are the same element. Scalars match
// by value; objects and arrays match by identity hash.
func (d *differ) match(a, b ir.IRValue) bool {
	if ir.Equal(a, b) {
		return true
	}
	if !isComposite(a) || !isComposite(b) {
		return false
	}
	return d.hash(a) == d.hash(b)
}

func isComposite(v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRObject, ir.IRArray:
		return true
	default:
		return false
	}
}

// lcs returns the index pairs (ascending) of a longest common subsequence
// of x and y under match.
func (d *differ) lcs(x, y []ir.IRValue) (seq1, seq2 []int) {
	n, m := len(x), len(y)

	matches := make([][]bool, n)
	for i := range x {
		matches[i] = make([]bool, m)
		for j := range y {
			matches[i][j] = d.match(x[i], y[j])
		}
	}

	lengths := make([][]int, n+1)
	for i := range lengths {
		lengths[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if matches[i-1][j-1] {
				lengths[i][j] = lengths[i-1][j-1] + 1
			} else {
				lengths[i][j] = max(lengths[i-1][j], lengths[i][j-1])
			}
		}
	}

	for i, j := n, m; i > 0 && j > 0; {
		switch {
		case matches[i-1][j-1]:
			seq1 = append(seq1, i-1)
			seq2 = append(seq2, j-1)
			i--
			j--
		case lengths[i][j-1] > lengths[i-1][j]:
			j--
		default:
			i--
		}
	}

	slices.Reverse(seq1)
	slices.Reverse(seq2)
	return seq1, seq2
}

func oldKey(i int) string {
	return "_" + strconv.Itoa(i)
}
