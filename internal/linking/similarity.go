package linking

// matchRatio computes a similarity ratio in [0, 1] between two strings using
// the classic longest-matching-block scheme: find the longest common
// substring, recurse on the pieces to its left and right, and score
// 2*matches/(len(a)+len(b)). Equivalent strings score 1.0.
func matchRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	matches := matchingRunes(ra, rb, 0, len(ra), 0, len(rb))
	return 2.0 * float64(matches) / float64(total)
}

func matchingRunes(a, b []rune, alo, ahi, blo, bhi int) int {
	i, j, size := longestMatch(a, b, alo, ahi, blo, bhi)
	if size == 0 {
		return 0
	}
	matches := size
	matches += matchingRunes(a, b, alo, i, blo, j)
	matches += matchingRunes(a, b, i+size, ahi, j+size, bhi)
	return matches
}

// longestMatch finds the longest block a[i:i+size] == b[j:j+size] within the
// given bounds, preferring the earliest occurrence on ties.
func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (int, int, int) {
	b2j := make(map[rune][]int)
	for j := blo; j < bhi; j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	besti, bestj, size := alo, blo, 0
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > size {
				besti, bestj, size = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, size
}
