// Package batch groups ordered items into capacity-bounded batches.
package batch

// Partition splits items into consecutive groups of at most capacity elements.
// Order is preserved and the last group may be shorter. A non-positive
// capacity yields a single group holding everything.
func Partition[T any](items []T, capacity int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if capacity <= 0 || capacity >= len(items) {
		return [][]T{items}
	}

	out := make([][]T, 0, (len(items)+capacity-1)/capacity)
	for start := 0; start < len(items); start += capacity {
		end := min(start+capacity, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}
