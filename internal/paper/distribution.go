package paper

import (
	"math"
	"sort"
	"strings"
)

// DifficultyBuckets is the fixed bucket order used everywhere a histogram is
// computed or counts are assigned. The order doubles as the tie-break rule.
var DifficultyBuckets = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}

// difficulty weight presets per requested target level
var levelWeights = map[string]map[string]float64{
	DifficultyEasy:   {DifficultyEasy: 0.4, DifficultyMedium: 0.4, DifficultyHard: 0.2},
	DifficultyMedium: {DifficultyEasy: 0.2, DifficultyMedium: 0.6, DifficultyHard: 0.2},
	DifficultyHard:   {DifficultyEasy: 0.1, DifficultyMedium: 0.3, DifficultyHard: 0.6},
	DifficultyMixed:  {DifficultyEasy: 0.33, DifficultyMedium: 0.34, DifficultyHard: 0.33},
}

// TargetWeights returns the difficulty weight preset for a target level.
// Unknown levels fall back to the mixed preset.
func TargetWeights(level string) map[string]float64 {
	w, ok := levelWeights[level]
	if !ok {
		w = levelWeights[DifficultyMixed]
	}
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// TargetCounts converts difficulty weights into integer bucket counts summing
// to total, using the largest-fractional-remainder rule. Ties are broken by
// bucket order (easy, medium, hard). Weights need not sum to one; they are
// normalized first, and non-positive or unknown-bucket weight maps fall back
// to the mixed preset.
func TargetCounts(total int, weights map[string]float64) map[string]int {
	if total < 0 {
		total = 0
	}

	sum := 0.0
	for _, b := range DifficultyBuckets {
		if w := weights[b]; w > 0 {
			sum += w
		}
	}
	if sum <= 0 {
		weights = TargetWeights(DifficultyMixed)
		sum = 1.0
	}

	counts := make(map[string]int, len(DifficultyBuckets))
	type remainder struct {
		bucket string
		frac   float64
		order  int
	}
	remainders := make([]remainder, 0, len(DifficultyBuckets))

	assigned := 0
	for i, b := range DifficultyBuckets {
		w := weights[b]
		if w < 0 {
			w = 0
		}
		share := float64(total) * w / sum
		floor := int(math.Floor(share))
		counts[b] = floor
		assigned += floor
		remainders = append(remainders, remainder{bucket: b, frac: share - float64(floor), order: i})
	}

	sort.SliceStable(remainders, func(i, j int) bool {
		if remainders[i].frac != remainders[j].frac {
			return remainders[i].frac > remainders[j].frac
		}
		return remainders[i].order < remainders[j].order
	})

	for i := 0; assigned < total; i++ {
		counts[remainders[i%len(remainders)].bucket]++
		assigned++
	}

	return counts
}

// TargetCountsForLevel is TargetCounts over the preset for a target level.
func TargetCountsForLevel(total int, level string) map[string]int {
	return TargetCounts(total, TargetWeights(level))
}

// CountByDifficulty computes the realized difficulty histogram of a question
// list. Labels outside the known buckets count as medium.
func CountByDifficulty(questions []Question) map[string]int {
	counts := map[string]int{DifficultyEasy: 0, DifficultyMedium: 0, DifficultyHard: 0}
	for _, q := range questions {
		counts[NormalizeDifficulty(q.Difficulty)]++
	}
	return counts
}

// NormalizeDifficulty lowercases a difficulty label and maps anything outside
// the known buckets to medium.
func NormalizeDifficulty(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// EnforceDistribution relabels questions so the realized histogram equals the
// target counts exactly. Questions keep their original label while that
// bucket has remaining quota (scanning in input order); overflow questions
// are relabeled into the first bucket, in bucket order, with quota left.
// The input slice is not modified.
func EnforceDistribution(questions []Question, target map[string]int) []Question {
	remaining := make(map[string]int, len(DifficultyBuckets))
	for _, b := range DifficultyBuckets {
		remaining[b] = target[b]
	}

	out := make([]Question, len(questions))
	copy(out, questions)

	var overflow []int
	for i := range out {
		label := NormalizeDifficulty(out[i].Difficulty)
		if remaining[label] > 0 {
			out[i].Difficulty = label
			remaining[label]--
		} else {
			overflow = append(overflow, i)
		}
	}

	for _, i := range overflow {
		for _, b := range DifficultyBuckets {
			if remaining[b] > 0 {
				out[i].Difficulty = b
				remaining[b]--
				break
			}
		}
	}

	return out
}

// SortByDifficulty orders questions easy, medium, hard, keeping input order
// within each bucket. Used by the formatting stage.
func SortByDifficulty(questions []Question) []Question {
	rank := map[string]int{DifficultyEasy: 0, DifficultyMedium: 1, DifficultyHard: 2}
	out := make([]Question, len(questions))
	copy(out, questions)
	sort.SliceStable(out, func(i, j int) bool {
		return rank[NormalizeDifficulty(out[i].Difficulty)] < rank[NormalizeDifficulty(out[j].Difficulty)]
	})
	return out
}
