package coordenv

import (
	"slices"
	"strconv"
	"strings"
)

// Separation partitions point indices into (side A, in-plane, side B).
type Separation [3][]int

// Signature is the size triple (|A|, |P|, |B|) of a separation.
type Signature [3]int

func (s Signature) String() string {
	return strconv.Itoa(s[0]) + "," + strconv.Itoa(s[1]) + "," + strconv.Itoa(s[2])
}

// Signature returns the group sizes.
func (s Separation) Signature() Signature {
	return Signature{len(s[0]), len(s[1]), len(s[2])}
}

// Sorted returns a canonical copy: each group ascending, smaller side first.
func (s Separation) Sorted() Separation {
	a, p, b := sortedCopy(s[0]), sortedCopy(s[1]), sortedCopy(s[2])
	if len(a) > len(b) {
		a, b = b, a
	}
	return Separation{a, p, b}
}

// Mirrored swaps the two sides.
func (s Separation) Mirrored() Separation {
	return Separation{s[2], s[1], s[0]}
}

// Key is a stable map key for the separation.
func (s Separation) Key() string {
	var sb strings.Builder
	for g, group := range s {
		if g > 0 {
			sb.WriteByte('|')
		}
		for i, idx := range group {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(idx))
		}
	}
	return sb.String()
}

// Flatten concatenates A, plane and B.
func (s Separation) Flatten() []int {
	out := make([]int, 0, len(s[0])+len(s[1])+len(s[2]))
	out = append(out, s[0]...)
	out = append(out, s[1]...)
	return append(out, s[2]...)
}

func sortedCopy(in []int) []int {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

// subsetKey is the cache key of a sorted index subset.
func subsetKey(indices []int) string {
	var sb strings.Builder
	for i, idx := range indices {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(idx))
	}
	return sb.String()
}

// argsort returns the indices that sort values ascending.
func argsort(values []int) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return values[a] - values[b] })
	return idx
}
