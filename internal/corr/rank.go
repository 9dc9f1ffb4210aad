package corr

import "sort"

// tieAveragedRanks converts values to ranks, assigning tied values the average
// of the ranks they span
func tieAveragedRanks(data []float64) []float64 {
	n := len(data)
	if n == 0 {
		return nil
	}

	type pair struct {
		value float64
		index int
	}
	pairs := make([]pair, n)
	for i, v := range data {
		pairs[i] = pair{value: v, index: i}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i + 1
		for j < n && pairs[j].value == pairs[i].value {
			j++
		}
		groupSize := j - i
		avgRank := float64(i+1) + float64(groupSize-1)/2.0
		for k := i; k < j; k++ {
			ranks[pairs[k].index] = avgRank
		}
		i = j
	}

	return ranks
}
