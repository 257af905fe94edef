package aggregator

// Delta is a commutative bounded update over an uint64 value: a net addition or
// subtraction, plus the largest intermediate excursions reached while the delta
// was accumulated. Keeping the excursion history makes overflow and underflow
// detection independent of whether deltas are applied one by one or merged first.
type Delta struct {
	positive bool
	value    uint64
	limit    uint64

	// highest point reached above the base while accumulating, as a magnitude
	maxAchievedPositive uint64
	// lowest point reached below the base while accumulating, as a magnitude
	minAchievedNegative uint64
}

// NewAdditionDelta creates a delta that adds value, saturating at limit
func NewAdditionDelta(value uint64, limit uint64) Delta {
	return Delta{
		positive:            true,
		value:               value,
		limit:               limit,
		maxAchievedPositive: value,
	}
}

// NewSubtractionDelta creates a delta that subtracts value, underflowing below zero
func NewSubtractionDelta(value uint64, limit uint64) Delta {
	return Delta{
		positive:            false,
		value:               value,
		limit:               limit,
		minAchievedNegative: value,
	}
}

// IsPositive returns true if the net effect of the delta is an addition
func (delta Delta) IsPositive() bool {
	return delta.positive
}

// Value returns the net magnitude of the delta
func (delta Delta) Value() uint64 {
	return delta.value
}

// Limit returns the declared saturation limit
func (delta Delta) Limit() uint64 {
	return delta.limit
}

// Merge composes the receiver with a delta applied after it. Composition is
// associative; it only fails when the running magnitude leaves the uint64 range
// or the limits do not match.
func (delta Delta) Merge(next Delta) (Delta, error) {
	if delta.limit != next.limit {
		return Delta{}, ErrMismatchedDeltaLimits
	}

	netPositive, netValue, err := signedAdd(delta.positive, delta.value, next.positive, next.value)
	if err != nil {
		return Delta{}, err
	}

	maxAchieved := delta.maxAchievedPositive
	upPositive, upValue, err := signedAdd(delta.positive, delta.value, true, next.maxAchievedPositive)
	if err != nil {
		return Delta{}, err
	}
	if upPositive && upValue > maxAchieved {
		maxAchieved = upValue
	}

	minAchieved := delta.minAchievedNegative
	downPositive, downValue, err := signedAdd(delta.positive, delta.value, false, next.minAchievedNegative)
	if err != nil {
		return Delta{}, err
	}
	if !downPositive && downValue > minAchieved {
		minAchieved = downValue
	}

	return Delta{
		positive:            netPositive,
		value:               netValue,
		limit:               delta.limit,
		maxAchievedPositive: maxAchieved,
		minAchievedNegative: minAchieved,
	}, nil
}

// Apply resolves the delta against a concrete base value
func (delta Delta) Apply(base uint64) (uint64, error) {
	if base > delta.limit {
		return 0, ErrBaseValueOverLimit
	}
	if delta.maxAchievedPositive > delta.limit-base {
		return 0, ErrDeltaOverflow
	}
	if base < delta.minAchievedNegative {
		return 0, ErrDeltaUnderflow
	}

	if delta.positive {
		return base + delta.value, nil
	}

	return base - delta.value, nil
}

// signedAdd adds two signed magnitudes, returning the sign and magnitude of the sum
func signedAdd(aPositive bool, a uint64, bPositive bool, b uint64) (bool, uint64, error) {
	if aPositive == bPositive {
		sum := a + b
		if sum < a {
			return false, 0, ErrDeltaOutOfRange
		}

		return normalizeSign(aPositive, sum), sum, nil
	}

	if a >= b {
		return normalizeSign(aPositive, a-b), a - b, nil
	}

	return normalizeSign(bPositive, b-a), b - a, nil
}

func normalizeSign(positive bool, magnitude uint64) bool {
	if magnitude == 0 {
		return true
	}

	return positive
}
