package coordenv

import "gonum.org/v1/gonum/stat/combin"

// orderings returns every ordering of items.
func orderings(items []int) [][]int {
	n := len(items)
	if n == 0 {
		return [][]int{{}}
	}
	idx := combin.Permutations(n, n)
	out := make([][]int, len(idx))
	for i, p := range idx {
		row := make([]int, n)
		for j, k := range p {
			row[j] = items[k]
		}
		out[i] = row
	}
	return out
}

// cyclicOrders returns the rotations of items and of its reverse, without duplicates.
func cyclicOrders(items []int) [][]int {
	n := len(items)
	if n == 0 {
		return [][]int{{}}
	}
	reversed := make([]int, n)
	for i, v := range items {
		reversed[n-1-i] = v
	}
	seen := make(map[string]bool)
	var out [][]int
	for _, base := range [][]int{items, reversed} {
		for shift := 0; shift < n; shift++ {
			rot := make([]int, n)
			for i := range rot {
				rot[i] = base[(i+shift)%n]
			}
			if k := subsetKey(rot); !seen[k] {
				seen[k] = true
				out = append(out, rot)
			}
		}
	}
	return out
}

// concatProduct returns every concatenation picking one option per part, in
// order. Every part needs at least one option.
func concatProduct(parts ...[][]int) [][]int {
	if len(parts) == 0 {
		return [][]int{{}}
	}
	lens := make([]int, len(parts))
	for i, options := range parts {
		lens[i] = len(options)
	}
	picks := combin.Cartesian(lens)
	out := make([][]int, len(picks))
	for i, pick := range picks {
		var row []int
		for part, opt := range pick {
			row = append(row, parts[part][opt]...)
		}
		if row == nil {
			row = []int{}
		}
		out[i] = row
	}
	return out
}

func rangeFrom(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}

// invertPermutation returns q with q[perm[i]] = i.
func invertPermutation(perm []int) []int {
	inv := make([]int, len(perm))
	for i, p := range perm {
		inv[p] = i
	}
	return inv
}
