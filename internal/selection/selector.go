// Package selection picks a spaced subset of scored candidates.
package selection

import (
	"fmt"
	"math"
	"sort"

	"github.com/keagan/snapsift/internal/shots"
)

// Strategy names a selection algorithm
type Strategy string

const (
	// StrategyGreedy takes candidates best-first, skipping any too close to one
	// already taken. It is not guaranteed to maximise the total score.
	StrategyGreedy Strategy = "greedy"
	// StrategyOptimal maximises the total score under the same constraints.
	StrategyOptimal Strategy = "optimal"
)

// ParseStrategy validates a strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyGreedy, "":
		return StrategyGreedy, nil
	case StrategyOptimal:
		return StrategyOptimal, nil
	default:
		return "", fmt.Errorf("unknown selection strategy %q", s)
	}
}

// Options bound the selection
type Options struct {
	TargetCount       int
	MinSpacingSeconds float64
	Strategy          Strategy
}

func DefaultOptions() Options {
	return Options{
		TargetCount:       10,
		MinSpacingSeconds: 15,
		Strategy:          StrategyGreedy,
	}
}

// Select returns at most TargetCount candidates, pairwise at least
// MinSpacingSeconds apart, in ascending timestamp order. The input is not modified.
func Select(candidates []shots.Scored, opts Options) []shots.Scored {
	if opts.TargetCount <= 0 || len(candidates) == 0 {
		return []shots.Scored{}
	}
	spacing := math.Max(0, opts.MinSpacingSeconds)

	var picked []shots.Scored
	if opts.Strategy == StrategyOptimal {
		picked = optimal(candidates, opts.TargetCount, spacing)
	} else {
		picked = greedy(candidates, opts.TargetCount, spacing)
	}

	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].Timestamp < picked[j].Timestamp
	})
	return picked
}

func greedy(candidates []shots.Scored, target int, spacing float64) []shots.Scored {
	ranked := make([]shots.Scored, len(candidates))
	copy(ranked, candidates)
	// ties keep discovery order
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	picked := make([]shots.Scored, 0, target)
	for _, c := range ranked {
		if len(picked) >= target {
			break
		}
		if tooClose(c, picked, spacing) {
			continue
		}
		picked = append(picked, c)
	}
	return picked
}

func tooClose(c shots.Scored, picked []shots.Scored, spacing float64) bool {
	for _, p := range picked {
		if math.Abs(c.Timestamp-p.Timestamp) < spacing {
			return true
		}
	}
	return false
}

// optimal solves the cardinality-bounded weighted spacing problem exactly.
// best[i][k] is the highest total using at most k picks among the first i
// candidates in time order.
func optimal(candidates []shots.Scored, target int, spacing float64) []shots.Scored {
	ordered := make([]shots.Scored, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	n := len(ordered)
	target = min(target, n)

	// prev[i] is how many leading candidates are far enough before candidate i
	prev := make([]int, n)
	for i := range ordered {
		j := i
		for j > 0 && ordered[i].Timestamp-ordered[j-1].Timestamp < spacing {
			j--
		}
		prev[i] = j
	}

	best := make([][]float64, n+1)
	take := make([][]bool, n+1)
	for i := range best {
		best[i] = make([]float64, target+1)
		take[i] = make([]bool, target+1)
	}
	for i := 1; i <= n; i++ {
		for k := 1; k <= target; k++ {
			best[i][k] = best[i-1][k]
			with := best[prev[i-1]][k-1] + ordered[i-1].Score
			if with > best[i][k] {
				best[i][k] = with
				take[i][k] = true
			}
		}
	}

	picked := make([]shots.Scored, 0, target)
	for i, k := n, target; i > 0 && k > 0; {
		if take[i][k] {
			picked = append(picked, ordered[i-1])
			i, k = prev[i-1], k-1
			continue
		}
		i--
	}
	return picked
}
