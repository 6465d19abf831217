package curation

import (
	"unicode"
)

// DedupBySource keeps the highest-scored candidate per source. Candidates
// without a source are grouped by ID. Ties keep the first seen, and each
// survivor takes its group's first-seen position.
func DedupBySource(items []Candidate) []Candidate {
	index := make(map[string]int, len(items))
	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		key := item.Source
		if key == "" {
			key = "id:" + item.ID
		}
		if i, ok := index[key]; ok {
			if item.Score > out[i].Score {
				out[i] = item
			}
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	return out
}

// DedupByContent collapses near-duplicates whose shingle Jaccard similarity
// exceeds threshold. The higher-scored item survives (ties: first seen) in
// the earlier position. O(n²), n is small after source dedup.
func DedupByContent(items []Candidate, n int, threshold float64) []Candidate {
	out := make([]Candidate, 0, len(items))
	sets := make([]map[string]struct{}, 0, len(items))

	for _, item := range items {
		set := Shingles(item.Content, n)
		dup := false
		for i := range out {
			if Jaccard(set, sets[i]) > threshold {
				dup = true
				if item.Score > out[i].Score {
					out[i] = item
					sets[i] = set
				}
				break
			}
		}
		if !dup {
			out = append(out, item)
			sets = append(sets, set)
		}
	}
	return out
}

// Shingles returns the set of n-rune shingles of s with whitespace removed.
// Text shorter than n forms a single shingle.
func Shingles(s string, n int) map[string]struct{} {
	runes := make([]rune, 0, len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			runes = append(runes, r)
		}
	}
	set := make(map[string]struct{})
	if len(runes) == 0 {
		return set
	}
	if len(runes) < n {
		set[string(runes)] = struct{}{}
		return set
	}
	for i := 0; i+n <= len(runes); i++ {
		set[string(runes[i:i+n])] = struct{}{}
	}
	return set
}

// Jaccard returns |a∩b| / |a∪b|, or 0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
