package analyzer

import "math"

// AdjustedRandIndex measures agreement between two label assignments over
// the same node set — used to check that DetectCommunities produces a
// stable partition across repeated runs on an unchanged graph.
//
// ARI = (RI - Expected_RI) / (Max_RI - Expected_RI)
// where RI = (a + b) / C(n, 2)
//   a = number of pairs assigned to the same community in both partitions
//   b = number of pairs assigned to different communities in both
//
// Ranges from -1 (worse than random) to 1 (perfect agreement); 0 is what
// two independent random partitions would score.
func AdjustedRandIndex(a, b []int) float64 {
	n := len(a)
	if n != len(b) || n < 2 {
		return 0.0
	}

	aLabels := uniqueLabels(a)
	bLabels := uniqueLabels(b)

	aMap := make(map[int]int, len(aLabels))
	for i, l := range aLabels {
		aMap[l] = i
	}
	bMap := make(map[int]int, len(bLabels))
	for i, l := range bLabels {
		bMap[l] = i
	}

	nij := make([][]int, len(aLabels))
	for i := range nij {
		nij[i] = make([]int, len(bLabels))
	}
	for k := 0; k < n; k++ {
		nij[aMap[a[k]]][bMap[b[k]]]++
	}

	rowSums := make([]int, len(aLabels))
	colSums := make([]int, len(bLabels))
	for i := range nij {
		for j := range nij[i] {
			rowSums[i] += nij[i][j]
			colSums[j] += nij[i][j]
		}
	}

	sumNijC2 := 0.0
	for i := range nij {
		for j := range nij[i] {
			sumNijC2 += comb2(nij[i][j])
		}
	}

	sumRowC2 := 0.0
	for _, r := range rowSums {
		sumRowC2 += comb2(r)
	}

	sumColC2 := 0.0
	for _, c := range colSums {
		sumColC2 += comb2(c)
	}

	nC2 := comb2(n)
	if nC2 == 0 {
		return 0.0
	}

	expected := (sumRowC2 * sumColC2) / nC2
	maxIndex := 0.5 * (sumRowC2 + sumColC2)

	denom := maxIndex - expected
	if math.Abs(denom) < 1e-12 {
		return 1.0
	}

	return (sumNijC2 - expected) / denom
}

// VariationOfInformation computes the information-theoretic distance
// between two community partitions: the entropy lost and gained moving
// from one to the other. 0 means identical partitions; larger values mean
// the runs disagree more about which wallets belong together.
func VariationOfInformation(a, b []int) float64 {
	n := len(a)
	if n != len(b) || n < 2 {
		return 0.0
	}
	nf := float64(n)

	aLabels := uniqueLabels(a)
	bLabels := uniqueLabels(b)

	aMap := make(map[int]int, len(aLabels))
	for i, l := range aLabels {
		aMap[l] = i
	}
	bMap := make(map[int]int, len(bLabels))
	for i, l := range bLabels {
		bMap[l] = i
	}

	nij := make([][]int, len(aLabels))
	for i := range nij {
		nij[i] = make([]int, len(bLabels))
	}
	for k := 0; k < n; k++ {
		nij[aMap[a[k]]][bMap[b[k]]]++
	}

	rowSums := make([]int, len(aLabels))
	colSums := make([]int, len(bLabels))
	for i := range nij {
		for j := range nij[i] {
			rowSums[i] += nij[i][j]
			colSums[j] += nij[i][j]
		}
	}

	hAgivenB := 0.0
	for i := range nij {
		for j := range nij[i] {
			if nij[i][j] > 0 && colSums[j] > 0 {
				pij := float64(nij[i][j]) / nf
				hAgivenB -= pij * math.Log2(float64(nij[i][j])/float64(colSums[j]))
			}
		}
	}

	hBgivenA := 0.0
	for i := range nij {
		for j := range nij[i] {
			if nij[i][j] > 0 && rowSums[i] > 0 {
				pij := float64(nij[i][j]) / nf
				hBgivenA -= pij * math.Log2(float64(nij[i][j])/float64(rowSums[i]))
			}
		}
	}

	return hAgivenB + hBgivenA
}

func comb2(n int) float64 {
	if n < 2 {
		return 0
	}
	return float64(n) * float64(n-1) / 2.0
}

func uniqueLabels(labels []int) []int {
	seen := make(map[int]bool)
	var result []int
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			result = append(result, l)
		}
	}
	return result
}

// communityLabels flattens DetectCommunities' map[int][]string output into
// a label slice aligned with addrs, for feeding into AdjustedRandIndex /
// VariationOfInformation.
func communityLabels(communities map[int][]string, addrs []string) []int {
	owner := make(map[string]int, len(addrs))
	for id, members := range communities {
		for _, m := range members {
			owner[m] = id
		}
	}
	labels := make([]int, len(addrs))
	for i, a := range addrs {
		labels[i] = owner[a]
	}
	return labels
}
