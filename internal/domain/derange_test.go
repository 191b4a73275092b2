package domain

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerange_NoFixedPoints(t *testing.T) {
	d := NewDeranger(rand.New(rand.NewSource(42)))

	for n := 2; n <= 12; n++ {
		items := make([]string, n)
		for i := range items {
			items[i] = fmt.Sprintf("prompt-%d", i)
		}

		for run := 0; run < 50; run++ {
			out, err := d.Derange(items)
			require.NoError(t, err)
			require.Len(t, out, n)
			assert.False(t, HasFixedPoint(items, out), "n=%d run=%d out=%v", n, run, out)

			sortedIn := append([]string(nil), items...)
			sortedOut := append([]string(nil), out...)
			sort.Strings(sortedIn)
			sort.Strings(sortedOut)
			assert.Equal(t, sortedIn, sortedOut, "output must be a permutation")
		}
	}
}

func TestDerange_DoesNotMutateInput(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	d := NewDeranger(rand.New(rand.NewSource(7)))

	_, err := d.Derange(items)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, items)
}

func TestDerange_SingleItem(t *testing.T) {
	// One prompt cannot be deranged; the shuffle fallback hands it back as is.
	d := NewDeranger(rand.New(rand.NewSource(1)))
	out, err := d.Derange([]string{"only"})
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, out)

	d.Fallback = FallbackError
	_, err = d.Derange([]string{"only"})
	assert.ErrorIs(t, err, ErrDerangementFailed)
}

func TestDerange_ImpossibleInputUsesFallback(t *testing.T) {
	d := Deranger{Rand: rand.New(rand.NewSource(3)), MaxAttempts: 10, Fallback: FallbackLastShuffle}
	out, err := d.Derange([]string{"same", "same", "same"})
	require.NoError(t, err)
	assert.Equal(t, []string{"same", "same", "same"}, out)

	d.Fallback = FallbackError
	_, err = d.Derange([]string{"same", "same", "same"})
	assert.ErrorIs(t, err, ErrDerangementFailed)
}

func TestDerange_Empty(t *testing.T) {
	out, err := NewDeranger(nil).Derange(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFallbackPolicy_Valid(t *testing.T) {
	assert.True(t, FallbackLastShuffle.Valid())
	assert.True(t, FallbackError.Valid())
	assert.False(t, FallbackPolicy("retry").Valid())
}
