// Package search locates the profit-maximising input size for a trade
// path via a coarse grid pass followed by a golden-section refinement,
// operating entirely on unsigned integers so the search is reproducible
// bit-for-bit regardless of platform float rounding.
package search

import (
	"math/bits"

	lru "github.com/hashicorp/golang-lru/v2"

	"sui-arb-engine/internal/arberr"
)

// Goal evaluates the objective function (typically a Trader.GetTradeResult
// profit) at a candidate input size x. It must be pure with respect to x:
// repeated calls with the same x return the same value, since the search
// may re-evaluate boundary points.
type Goal interface {
	Evaluate(x uint64) (int64, error)
}

// GoalFunc adapts a plain function to Goal.
type GoalFunc func(x uint64) (int64, error)

func (f GoalFunc) Evaluate(x uint64) (int64, error) { return f(x) }

// Result is the best (argument, value) pair Run found, plus the number of
// genuine (non-cached) Goal evaluations it took.
type Result struct {
	ArgMax      uint64
	Max         int64
	CacheMisses uint64
}

// trialCache memoizes Goal.Evaluate by x so the grid pass and the
// golden-section refinement never re-simulate the same amount-in twice.
// Sized by the caller to comfortably hold every distinct x a single Run can
// visit, so it never evicts within one search.
type trialCache struct {
	goal   Goal
	cache  *lru.Cache[uint64, int64]
	misses uint64
}

func newTrialCache(goal Goal, size int) *trialCache {
	c, _ := lru.New[uint64, int64](size) // size > 0 always, per newTrialCache's caller
	return &trialCache{goal: goal, cache: c}
}

func (t *trialCache) Evaluate(x uint64) (int64, error) {
	if v, ok := t.cache.Get(x); ok {
		return v, nil
	}
	t.misses++
	v, err := t.goal.Evaluate(x)
	if err != nil {
		return 0, err
	}
	t.cache.Add(x, v)
	return v, nil
}

// goldenNumerator/goldenDenominator give the exact rational approximation
// of 1/phi used to place golden-section probe points: d/u =
// 9_002_589/14_566_495. Using an exact fraction rather than a floating
// point constant keeps probe placement identical across every platform
// this search runs on.
const (
	goldenNumerator   = 9_002_589
	goldenDenominator = 14_566_495
)

// scaleByGolden computes span*goldenNumerator/goldenDenominator without
// overflowing 64 bits, using bits.Mul64/bits.Div64 to carry the full
// 128-bit intermediate product through the division.
func scaleByGolden(span uint64) uint64 {
	hi, lo := bits.Mul64(span, goldenNumerator)
	if hi == 0 {
		return lo / goldenDenominator
	}
	q, _ := bits.Div64(hi, lo, goldenDenominator)
	return q
}

// Run performs a k-point grid search over [xMin, xMax] to find a coarse
// bracket, then refines the best bracket with golden-section search up to
// maxIterations steps or until the bracket width is within 3 of closing
// (matching the reference search's right-left<=3 fallback, below which
// golden-section's probe spacing degenerates).
func Run(goal Goal, xMin, xMax uint64, gridSize int, maxIterations int) (Result, error) {
	if xMin > xMax {
		return Result{}, arberr.Wrapf(arberr.ErrConfigInvalid, "search: xMin %d > xMax %d", xMin, xMax)
	}
	if gridSize < 2 {
		return Result{}, arberr.Wrap(arberr.ErrConfigInvalid, "search: gridSize must be >= 2")
	}

	cached := newTrialCache(goal, gridSize+2*maxIterations+4)

	left, right, err := gridBracket(cached, xMin, xMax, gridSize)
	if err != nil {
		return Result{}, err
	}

	result, err := goldenSection(cached, left, right, maxIterations)
	if err != nil {
		return Result{}, err
	}
	result.CacheMisses = cached.misses
	return result, nil
}

// gridBracket evaluates gridSize evenly spaced points across [xMin, xMax],
// including both endpoints, and returns the interval immediately
// surrounding the best point found (or the best point's own neighbours at
// the boundary), for golden-section to refine.
func gridBracket(goal Goal, xMin, xMax uint64, gridSize int) (left, right uint64, err error) {
	span := xMax - xMin
	step := span / uint64(gridSize-1)
	if step == 0 {
		return xMin, xMax, nil
	}

	type point struct {
		x   uint64
		val int64
	}
	points := make([]point, 0, gridSize)
	for i := 0; i < gridSize; i++ {
		x := xMin + uint64(i)*step
		if i == gridSize-1 || x > xMax {
			x = xMax
		}
		v, err := goal.Evaluate(x)
		if err != nil {
			return 0, 0, err
		}
		points = append(points, point{x: x, val: v})
	}

	bestIdx := 0
	for i, p := range points {
		if p.val > points[bestIdx].val {
			bestIdx = i
		}
	}

	lo := bestIdx - 1
	if lo < 0 {
		lo = 0
	}
	hi := bestIdx + 1
	if hi >= len(points) {
		hi = len(points) - 1
	}
	return points[lo].x, points[hi].x, nil
}

// goldenSection narrows [left, right] using the golden-section rule. Two
// interior probes are maintained: ml = right - Δ (the near-left probe) and
// mr = left + Δ (the near-right probe), where Δ = span * (1/φ). On each
// step, the lower-scoring probe's side is discarded (ties discard the right
// side, preferring the smaller input); the surviving probe is reused as the
// new iteration's other probe, so only one new point is evaluated per step.
func goldenSection(goal Goal, left, right uint64, maxIterations int) (Result, error) {
	bestArg := left
	bestVal, err := goal.Evaluate(left)
	if err != nil {
		return Result{}, err
	}
	if rightVal, err := goal.Evaluate(right); err != nil {
		return Result{}, err
	} else if rightVal > bestVal {
		bestArg, bestVal = right, rightVal
	}

	if right > left && right-left > 3 {
		span := right - left
		delta := scaleByGolden(span)
		ml := right - delta
		mr := left + delta
		mlVal, err := goal.Evaluate(ml)
		if err != nil {
			return Result{}, err
		}
		mrVal, err := goal.Evaluate(mr)
		if err != nil {
			return Result{}, err
		}
		if mlVal > bestVal {
			bestArg, bestVal = ml, mlVal
		}
		if mrVal > bestVal {
			bestArg, bestVal = mr, mrVal
		}

		for i := 1; i < maxIterations && right > left && right-left > 3; i++ {
			if mlVal < mrVal {
				// the maximum cannot lie left of ml: discard that side.
				left = ml
				ml, mlVal = mr, mrVal
				span = right - left
				mr = left + scaleByGolden(span)
				mrVal, err = goal.Evaluate(mr)
			} else {
				// tie or ml ahead: the maximum cannot lie right of mr.
				right = mr
				mr, mrVal = ml, mlVal
				span = right - left
				ml = right - scaleByGolden(span)
				mlVal, err = goal.Evaluate(ml)
			}
			if err != nil {
				return Result{}, err
			}
			if mlVal > bestVal {
				bestArg, bestVal = ml, mlVal
			}
			if mrVal > bestVal {
				bestArg, bestVal = mr, mrVal
			}
		}
	}

	// final sweep of whatever narrow bracket remains, since golden
	// section's stopping width (<=3) can still hide the true optimum
	// between its last two probes.
	for x := left; x <= right; x++ {
		v, err := goal.Evaluate(x)
		if err != nil {
			return Result{}, err
		}
		if v > bestVal {
			bestArg, bestVal = x, v
		}
	}

	return Result{ArgMax: bestArg, Max: bestVal}, nil
}
