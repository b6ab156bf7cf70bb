package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit_DefaultPolicy(t *testing.T) {
	shares := Split(1000, [3]int{40, 40, 20})
	assert.Equal(t, [3]int64{400, 400, 200}, shares)
}

func TestSplit_ExactPercentages(t *testing.T) {
	shares := Split(100, [3]int{50, 30, 20})
	assert.Equal(t, [3]int64{50, 30, 20}, shares)
}

func TestSplit_SingleUnitGoesToLastSlot(t *testing.T) {
	shares := Split(1, [3]int{40, 40, 20})
	assert.Equal(t, [3]int64{0, 0, 1}, shares)
}

func TestSplit_ZeroAmount(t *testing.T) {
	shares := Split(0, [3]int{40, 40, 20})
	assert.Equal(t, [3]int64{0, 0, 0}, shares)
}

func TestSplit_RemainderAbsorbedByThirdSlot(t *testing.T) {
	// 33/33/34 over 100 units: floors leave nothing behind
	shares := Split(100, [3]int{33, 33, 34})
	assert.Equal(t, [3]int64{33, 33, 34}, shares)

	// Odd amounts always leave the rounding loss in the third slot
	shares = Split(99, [3]int{33, 33, 34})
	assert.Equal(t, [3]int64{32, 32, 35}, shares)
}

func TestSplit_SumAlwaysEqualsAmount(t *testing.T) {
	policies := [][3]int{
		{40, 40, 20},
		{33, 33, 34},
		{1, 1, 98},
		{0, 0, 100},
		{100, 0, 0},
		{17, 45, 38},
	}
	amounts := []int64{1, 2, 3, 7, 99, 100, 101, 999, 1000, 123456789}

	for _, pct := range policies {
		for _, amount := range amounts {
			shares := Split(amount, pct)
			assert.Equal(t, amount, shares[0]+shares[1]+shares[2],
				"split of %d by %v must sum back", amount, pct)
		}
	}
}

func TestSplit_AllToOneSlot(t *testing.T) {
	shares := Split(777, [3]int{0, 100, 0})
	assert.Equal(t, [3]int64{0, 777, 0}, shares)
}

func TestRecomputePolicy_SumsToHundred(t *testing.T) {
	balances := [][3]int64{
		{100, 100, 100},
		{1, 1, 1},
		{999, 1, 0},
		{50, 30, 20},
		{7, 13, 29},
	}

	for _, b := range balances {
		pct := RecomputePolicy(b, [3]int{40, 40, 20})
		assert.Equal(t, 100, pct[0]+pct[1]+pct[2], "recomputed policy for %v must sum to 100", b)
		assert.GreaterOrEqual(t, pct[0], 0)
		assert.GreaterOrEqual(t, pct[1], 0)
		assert.GreaterOrEqual(t, pct[2], 0)
	}
}

func TestRecomputePolicy_ExactProportions(t *testing.T) {
	pct := RecomputePolicy([3]int64{500, 300, 200}, [3]int{40, 40, 20})
	assert.Equal(t, [3]int{50, 30, 20}, pct)
}

func TestRecomputePolicy_ZeroTotalKeepsPrevious(t *testing.T) {
	pct := RecomputePolicy([3]int64{0, 0, 0}, [3]int{40, 40, 20})
	assert.Equal(t, [3]int{40, 40, 20}, pct)
}

func TestRecomputePolicy_RemainderFallsToThirdSlot(t *testing.T) {
	// 1/1/1 floors to 33/33, leaving 34 for the third slot
	pct := RecomputePolicy([3]int64{1, 1, 1}, [3]int{40, 40, 20})
	assert.Equal(t, [3]int{33, 33, 34}, pct)
}
