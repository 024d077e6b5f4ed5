package batch

import (
	"slices"
	"testing"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		capacity int
		sizes    []int
	}{
		{"empty", 0, 100, nil},
		{"single short", 3, 100, []int{3}},
		{"exact multiple", 200, 100, []int{100, 100}},
		{"remainder", 250, 100, []int{100, 100, 50}},
		{"capacity one", 3, 1, []int{1, 1, 1}},
		{"zero capacity", 5, 0, []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]int, tt.n)
			for i := range items {
				items[i] = i
			}

			got := Partition(items, tt.capacity)

			var sizes []int
			var flat []int
			for _, b := range got {
				sizes = append(sizes, len(b))
				flat = append(flat, b...)
			}
			if !slices.Equal(sizes, tt.sizes) {
				t.Errorf("sizes = %v, want %v", sizes, tt.sizes)
			}
			if !slices.Equal(flat, items) {
				t.Errorf("concatenation does not reconstruct input")
			}
		})
	}
}

func TestPartition_BoundedAndOrdered(t *testing.T) {
	for n := 0; n <= 37; n++ {
		for capacity := 1; capacity <= 9; capacity++ {
			items := make([]int, n)
			for i := range items {
				items[i] = i
			}
			next := 0
			for _, b := range Partition(items, capacity) {
				if len(b) == 0 || len(b) > capacity {
					t.Fatalf("n=%d cap=%d: batch of %d", n, capacity, len(b))
				}
				for _, v := range b {
					if v != next {
						t.Fatalf("n=%d cap=%d: got %d, want %d", n, capacity, v, next)
					}
					next++
				}
			}
			if next != n {
				t.Fatalf("n=%d cap=%d: saw %d items", n, capacity, next)
			}
		}
	}
}

func TestPartition_AppendDoesNotClobberNextBatch(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	got := Partition(items, 2)
	_ = append(got[0], "x")
	if got[1][0] != "c" {
		t.Errorf("second batch modified: %v", got[1])
	}
}
