package domain

// DefaultDerangementAttempts caps the shuffle-and-check loop
const DefaultDerangementAttempts = 1000

// FallbackPolicy decides what Derange does when every attempt left a fixed point
type FallbackPolicy string

const (
	// FallbackLastShuffle returns the last shuffle even though it has a fixed point
	FallbackLastShuffle FallbackPolicy = "shuffle"
	// FallbackError fails with ErrDerangementFailed
	FallbackError FallbackPolicy = "error"
)

// Valid returns true for known policies
func (p FallbackPolicy) Valid() bool {
	return p == FallbackLastShuffle || p == FallbackError
}

// Deranger produces prompt permutations in which no position keeps its
// original value, so nobody reveals the prompt they wrote.
type Deranger struct {
	Rand        Rand
	MaxAttempts int
	Fallback    FallbackPolicy
}

// NewDeranger returns a deranger with the default attempt cap and fallback
func NewDeranger(rng Rand) Deranger {
	return Deranger{
		Rand:        rng,
		MaxAttempts: DefaultDerangementAttempts,
		Fallback:    FallbackLastShuffle,
	}
}

// Derange shuffles a copy of items with Fisher-Yates until no index holds
// its original value. After MaxAttempts failed shuffles it applies the
// fallback policy. A single item can never be deranged: with the shuffle
// fallback it is returned unchanged.
func (d Deranger) Derange(items []string) ([]string, error) {
	rng := d.Rand
	if rng == nil {
		rng = DefaultRand
	}
	attempts := d.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultDerangementAttempts
	}

	arr := make([]string, len(items))
	copy(arr, items)
	if len(arr) == 0 {
		return arr, nil
	}

	for attempt := 0; attempt < attempts; attempt++ {
		for i := len(arr) - 1; i > 0; i-- {
			j := rng.Intn(i + 1)
			arr[i], arr[j] = arr[j], arr[i]
		}
		if !HasFixedPoint(items, arr) {
			return arr, nil
		}
	}

	if d.Fallback == FallbackError {
		return nil, ErrDerangementFailed
	}
	return arr, nil
}

// HasFixedPoint reports whether any position of shuffled equals original.
func HasFixedPoint(original, shuffled []string) bool {
	for i := range shuffled {
		if i < len(original) && shuffled[i] == original[i] {
			return true
		}
	}
	return false
}
