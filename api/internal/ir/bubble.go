package ir

import "strings"

// BubbleSortTrace simulates canonical bubble sort: pass i sweeps adjacent
// pairs over the unsorted prefix [0, n-1-i], one step per comparison. No
// early exit, so the pass structure does not depend on the data.
func BubbleSortTrace(input []int) []SortStep {
	a := append([]int(nil), input...)
	n := len(a)
	var steps []SortStep
	for i := 0; i < n-1; i++ {
		for j := 0; j < n-1-i; j++ {
			swap := a[j] > a[j+1]
			if swap {
				a[j], a[j+1] = a[j+1], a[j]
			}
			steps = append(steps, SortStep{
				Step:    len(steps) + 1,
				Compare: []int{j, j + 1},
				Swap:    swap,
				Array:   append([]int(nil), a...),
			})
		}
	}
	return steps
}

// IsBubbleSort reports whether an algorithm name denotes bubble sort.
func IsBubbleSort(algorithm string) bool {
	s := strings.ToLower(strings.TrimSpace(algorithm))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return s == "" || s == "bubble_sort" || s == "bubble" || s == "bubblesort"
}
