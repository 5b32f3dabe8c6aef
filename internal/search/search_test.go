package search

import (
	"testing"
)

// concave returns a goal with a single peak at x=peak, strictly decreasing
// on either side — the ideal case for golden-section search.
func concave(peak uint64, peakVal int64) Goal {
	return GoalFunc(func(x uint64) (int64, error) {
		var d int64
		if x > peak {
			d = int64(x - peak)
		} else {
			d = int64(peak - x)
		}
		return peakVal - d*d, nil
	})
}

func TestRunFindsConcavePeak(t *testing.T) {
	goal := concave(500_000, 1_000_000)
	res, err := Run(goal, 0, 1_000_000, 15, 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// golden-section on a concave function should land within a few units
	// of the true peak, never exactly optimal by construction (grid step
	// quantization) but close.
	diff := int64(res.ArgMax) - 500_000
	if diff < -50 || diff > 50 {
		t.Fatalf("ArgMax = %d, want within 50 of 500000", res.ArgMax)
	}
}

func TestRunTableLookupMatchesBruteForce(t *testing.T) {
	table := []int64{
		10, 40, 90, 160, 250, 360, 490, 640, 490, 360, 250, 160, 90, 40, 10,
	}
	goal := GoalFunc(func(x uint64) (int64, error) {
		if int(x) >= len(table) {
			return 0, nil
		}
		return table[x], nil
	})

	res, err := Run(goal, 0, uint64(len(table)-1), len(table), 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var wantArg int
	var wantVal int64 = table[0]
	for i, v := range table {
		if v > wantVal {
			wantVal, wantArg = v, i
		}
	}
	if int(res.ArgMax) != wantArg || res.Max != wantVal {
		t.Fatalf("Run = (%d, %d), want (%d, %d)", res.ArgMax, res.Max, wantArg, wantVal)
	}
}

func TestRunRejectsInvertedRange(t *testing.T) {
	goal := concave(10, 100)
	if _, err := Run(goal, 100, 10, 15, 10); err == nil {
		t.Fatal("expected error when xMin > xMax")
	}
}

func TestRunNarrowRangeFallsBackToSweep(t *testing.T) {
	goal := concave(2, 100)
	res, err := Run(goal, 0, 4, 2, 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ArgMax != 2 {
		t.Fatalf("ArgMax = %d, want 2", res.ArgMax)
	}
}

// TestRunMatchesTabulatedGoldenSectionFixture exercises the one scenario
// spec.md gives complete values for: a tabulated unimodal map over [1,9]
// whose peak sits at x=7. The other eight table entries in that scenario
// are elided in spec.md itself (given only as "4010…6966" etc.), so this
// asserts only the documented (arg_max, max) pair rather than the full
// table.
func TestRunMatchesTabulatedGoldenSectionFixture(t *testing.T) {
	const wantArg = 7
	const wantMax = int64(4729882751161429615)

	goal := GoalFunc(func(x uint64) (int64, error) {
		if x == wantArg {
			return wantMax, nil
		}
		// Every other tabulated point is unknown, but all must score
		// below the x=7 peak for the fixture's claimed arg_max to hold;
		// a smooth concave filler below wantMax suffices since the
		// search only needs to discriminate peak from non-peak.
		d := int64(x) - wantArg
		return wantMax - 1 - d*d, nil
	})

	res, err := Run(goal, 1, 9, 9, 1000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ArgMax != wantArg || res.Max != wantMax {
		t.Fatalf("Run = (%d, %d), want (%d, %d)", res.ArgMax, res.Max, wantArg, wantMax)
	}
}

func TestRunReportsCacheMisses(t *testing.T) {
	calls := 0
	goal := GoalFunc(func(x uint64) (int64, error) {
		calls++
		return concaveVal(x, 50, 1000), nil
	})
	res, err := Run(goal, 0, 100, 10, 50)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.CacheMisses == 0 {
		t.Fatal("expected at least one cache miss")
	}
	if int(res.CacheMisses) != calls {
		t.Fatalf("CacheMisses = %d, want %d (every call is a genuine miss here)", res.CacheMisses, calls)
	}
}

func concaveVal(x, peak uint64, peakVal int64) int64 {
	var d int64
	if x > peak {
		d = int64(x - peak)
	} else {
		d = int64(peak - x)
	}
	return peakVal - d*d
}

func TestScaleByGoldenMatchesExactFraction(t *testing.T) {
	got := scaleByGolden(14_566_495)
	if got != goldenNumerator {
		t.Fatalf("scaleByGolden(denominator) = %d, want %d", got, goldenNumerator)
	}
}

func TestScaleByGoldenHandlesLargeSpan(t *testing.T) {
	// span near the top of a plausible Sui amount (u64 MIST balances),
	// exercising the 128-bit Mul64/Div64 path rather than the fast path.
	const bigSpan = uint64(1) << 62
	got := scaleByGolden(bigSpan)
	if got == 0 || got >= bigSpan {
		t.Fatalf("scaleByGolden(%d) = %d, expected a value strictly between 0 and span", bigSpan, got)
	}
}
