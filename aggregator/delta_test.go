package aggregator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDelta_Apply(t *testing.T) {
	t.Parallel()

	t.Run("addition", func(t *testing.T) {
		t.Parallel()

		delta := NewAdditionDelta(5, 100)
		value, err := delta.Apply(10)
		require.NoError(t, err)
		require.Equal(t, uint64(15), value)
	})

	t.Run("subtraction", func(t *testing.T) {
		t.Parallel()

		delta := NewSubtractionDelta(5, 100)
		value, err := delta.Apply(10)
		require.NoError(t, err)
		require.Equal(t, uint64(5), value)
	})

	t.Run("overflow over the limit", func(t *testing.T) {
		t.Parallel()

		delta := NewAdditionDelta(5, 100)
		_, err := delta.Apply(98)
		require.ErrorIs(t, err, ErrDeltaOverflow)
	})

	t.Run("underflow below zero", func(t *testing.T) {
		t.Parallel()

		delta := NewSubtractionDelta(5, 100)
		_, err := delta.Apply(3)
		require.ErrorIs(t, err, ErrDeltaUnderflow)
	})

	t.Run("base already over the limit", func(t *testing.T) {
		t.Parallel()

		delta := NewAdditionDelta(1, 100)
		_, err := delta.Apply(101)
		require.ErrorIs(t, err, ErrBaseValueOverLimit)
	})
}

func TestDelta_Merge(t *testing.T) {
	t.Parallel()

	t.Run("net value and sign", func(t *testing.T) {
		t.Parallel()

		merged, err := NewAdditionDelta(5, 100).Merge(NewSubtractionDelta(3, 100))
		require.NoError(t, err)
		require.True(t, merged.IsPositive())
		require.Equal(t, uint64(2), merged.Value())

		merged, err = NewAdditionDelta(3, 100).Merge(NewSubtractionDelta(5, 100))
		require.NoError(t, err)
		require.False(t, merged.IsPositive())
		require.Equal(t, uint64(2), merged.Value())
	})

	t.Run("mismatched limits", func(t *testing.T) {
		t.Parallel()

		_, err := NewAdditionDelta(1, 100).Merge(NewAdditionDelta(1, 200))
		require.ErrorIs(t, err, ErrMismatchedDeltaLimits)
	})

	t.Run("running magnitude leaves the uint64 range", func(t *testing.T) {
		t.Parallel()

		_, err := NewAdditionDelta(math.MaxUint64, math.MaxUint64).
			Merge(NewAdditionDelta(1, math.MaxUint64))
		require.ErrorIs(t, err, ErrDeltaOutOfRange)
	})

	t.Run("intermediate excursion is kept", func(t *testing.T) {
		t.Parallel()

		// +5 then -3: the net effect is +2 but the value peaked 5 above the base
		merged, err := NewAdditionDelta(5, 6).Merge(NewSubtractionDelta(3, 6))
		require.NoError(t, err)
		require.Equal(t, uint64(2), merged.Value())

		_, err = merged.Apply(2)
		require.ErrorIs(t, err, ErrDeltaOverflow)

		value, err := merged.Apply(1)
		require.NoError(t, err)
		require.Equal(t, uint64(3), value)
	})

	t.Run("merge is associative", func(t *testing.T) {
		t.Parallel()

		first := NewAdditionDelta(7, 1000)
		second := NewSubtractionDelta(10, 1000)
		third := NewAdditionDelta(4, 1000)

		leftPair, err := first.Merge(second)
		require.NoError(t, err)
		left, err := leftPair.Merge(third)
		require.NoError(t, err)

		rightPair, err := second.Merge(third)
		require.NoError(t, err)
		right, err := first.Merge(rightPair)
		require.NoError(t, err)

		require.Equal(t, left, right)
	})
}

func TestDelta_MergeMatchesSequentialApplication(t *testing.T) {
	t.Parallel()

	sequences := [][]Delta{
		{NewAdditionDelta(5, 50), NewAdditionDelta(7, 50)},
		{NewAdditionDelta(5, 50), NewSubtractionDelta(7, 50)},
		{NewSubtractionDelta(7, 50), NewAdditionDelta(5, 50)},
		{NewAdditionDelta(30, 50), NewAdditionDelta(30, 50), NewSubtractionDelta(45, 50)},
		{NewSubtractionDelta(10, 50), NewAdditionDelta(10, 50), NewAdditionDelta(1, 50)},
	}
	bases := []uint64{0, 5, 20, 49, 50}

	for _, sequence := range sequences {
		for _, base := range bases {
			stepValue := base
			var stepErr error
			for _, delta := range sequence {
				stepValue, stepErr = delta.Apply(stepValue)
				if stepErr != nil {
					break
				}
			}

			merged := sequence[0]
			var mergeErr error
			for _, delta := range sequence[1:] {
				merged, mergeErr = merged.Merge(delta)
				require.NoError(t, mergeErr)
			}
			mergedValue, mergedErr := merged.Apply(base)

			if stepErr != nil {
				require.Error(t, mergedErr)
				continue
			}

			require.NoError(t, mergedErr)
			require.Equal(t, stepValue, mergedValue)
		}
	}
}
