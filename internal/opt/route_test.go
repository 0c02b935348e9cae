package opt

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineMatrix places n nodes on a line at unit spacing.
func lineMatrix(n int) DistanceMatrix {
	m := make(DistanceMatrix, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			m[i][j] = math.Abs(float64(i - j))
		}
	}
	return m
}

// randomMatrix returns an asymmetric integer matrix with a zero diagonal.
func randomMatrix(n int, seed int64) DistanceMatrix {
	rng := rand.New(rand.NewSource(seed))
	m := make(DistanceMatrix, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if i != j {
				m[i][j] = float64(1 + rng.Intn(50))
			}
		}
	}
	return m
}

func TestMatrixValidate(t *testing.T) {
	require.NoError(t, lineMatrix(3).Validate())
	require.NoError(t, DistanceMatrix{{0, 1}, {7, 0}}.Validate(), "asymmetric is allowed")

	bad := []DistanceMatrix{
		nil,
		{{0}},
		{{0, 1}, {1}},
		{{0, -1}, {1, 0}},
		{{0, math.NaN()}, {1, 0}},
		{{0, math.Inf(1)}, {1, 0}},
	}
	for _, m := range bad {
		assert.ErrorIs(t, m.Validate(), ErrInvalidMatrix, "%v", m)
	}
}

func TestConstructInvariants(t *testing.T) {
	m := randomMatrix(9, 42)
	for seed := int64(1); seed <= 50; seed++ {
		r, err := Construct(m, rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		require.NoError(t, ValidateShape(r.Stops, m.Size()))
		require.True(t, r.Feasible())

		steps := 0
		cost, err := Simulate(m, r.Stops, ReplayStrict, func(s Step) {
			steps++
			assert.False(t, s.Skipped)
			assert.GreaterOrEqual(t, s.State.Empty, 0)
			assert.GreaterOrEqual(t, s.State.Full, 0)
			assert.LessOrEqual(t, s.State.Empty+s.State.Full, Slots)
		})
		require.NoError(t, err)
		assert.Equal(t, len(r.Stops), steps)
		assert.Equal(t, r.Cost, cost, "seed %d", seed)
	}
}

func TestConstructDeterministic(t *testing.T) {
	m := randomMatrix(7, 3)
	a, err := Construct(m, rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	b, err := Construct(m, rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestConstructSingleClient(t *testing.T) {
	m := DistanceMatrix{{0, 3}, {4, 0}}
	r, err := Construct(m, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0, 1, 0}, r.Stops)
	assert.Equal(t, 14.0, r.Cost)
}

func TestConstructChargesDepotSelfLoop(t *testing.T) {
	m := DistanceMatrix{{5, 1}, {1, 0}}
	r, err := Construct(m, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	cost, err := Replay(m, r.Stops, ReplayStrict)
	require.NoError(t, err)
	assert.Equal(t, r.Cost, cost)
	assert.Equal(t, 9.0, cost)
}

func TestReplayCapacityViolation(t *testing.T) {
	m := lineMatrix(4)

	cost, err := Replay(m, []int{0, 1, 2, 3, 0, 1, 2, 3, 0}, ReplayStrict)
	assert.ErrorIs(t, err, ErrCapacityViolation)
	assert.Equal(t, InfeasibleCost, cost)

	// second visit to 1 is a delivery, but nothing empty is onboard
	cost, err = Replay(m, []int{0, 1, 1, 0, 2, 0, 2, 3, 0, 3, 0}, ReplayLenient)
	assert.ErrorIs(t, err, ErrCapacityViolation)
	assert.Equal(t, InfeasibleCost, cost)
}

func TestReplayUnclassifiedStop(t *testing.T) {
	m := lineMatrix(2)
	stops := []int{0, 1, 0, 1, 1, 0}

	_, err := Replay(m, stops, ReplayStrict)
	assert.ErrorIs(t, err, ErrUnclassifiedStop)

	var skipped []int
	cost, err := Simulate(m, stops, ReplayLenient, func(s Step) {
		if s.Skipped {
			skipped = append(skipped, s.Index)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []int{4}, skipped)
	assert.Equal(t, 4.0, cost)
}

func TestReplayIncompleteRoute(t *testing.T) {
	m := lineMatrix(2)
	_, err := Replay(m, []int{0, 1, 0}, ReplayStrict)
	assert.ErrorIs(t, err, ErrIncompleteRoute)

	cost, err := Replay(m, []int{0, 1, 0}, ReplayLenient)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cost)
}

func TestReplayOutOfRange(t *testing.T) {
	for _, mode := range []ReplayMode{ReplayStrict, ReplayLenient} {
		cost, err := Replay(lineMatrix(3), []int{0, 7, 0}, mode)
		assert.ErrorIs(t, err, ErrStopOutOfRange)
		assert.Equal(t, InfeasibleCost, cost)
	}
}

func TestValidateShape(t *testing.T) {
	assert.NoError(t, ValidateShape([]int{0, 1, 2, 0, 1, 2, 0}, 3))
	assert.Error(t, ValidateShape([]int{1, 0, 2, 0, 1, 2, 0}, 3))
	assert.Error(t, ValidateShape([]int{0, 1, 2, 0, 1, 0}, 3))
	assert.ErrorIs(t, ValidateShape([]int{0, 1, 4, 0}, 3), ErrStopOutOfRange)
}

func TestParseReplayMode(t *testing.T) {
	for in, want := range map[string]ReplayMode{"": ReplayStrict, "strict": ReplayStrict, " Lenient ": ReplayLenient} {
		got, err := ParseReplayMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseReplayMode("loose")
	assert.Error(t, err)
}

func TestRouteCloneIsIndependent(t *testing.T) {
	r := Route{Stops: []int{0, 1, 0, 1, 0}, Cost: 4}
	c := r.Clone()
	c.Stops[1] = 9
	assert.Equal(t, 1, r.Stops[1])
	assert.Equal(t, "0,1,0,1,0", r.Key())
}

func TestReplaySwappedCandidatesCostOrFail(t *testing.T) {
	matrices := []DistanceMatrix{lineMatrix(3), lineMatrix(5), randomMatrix(6, 2), randomMatrix(8, 5)}
	for mi, m := range matrices {
		for seed := int64(1); seed <= 10; seed++ {
			rng := rand.New(rand.NewSource(seed))
			r, err := Construct(m, rng)
			require.NoError(t, err)
			nb := NewNeighborhood(len(r.Stops))
			for p, ok := nb.Take(rng); ok; p, ok = nb.Take(rng) {
				stops := Swap(r.Stops, p)
				for _, mode := range []ReplayMode{ReplayStrict, ReplayLenient} {
					cost, err := Replay(m, stops, mode)
					if err != nil {
						assert.Equal(t, InfeasibleCost, cost, "matrix %d seed %d %v %s", mi, seed, p, mode)
					} else {
						assert.GreaterOrEqual(t, cost, 0.0, "matrix %d seed %d %v %s", mi, seed, p, mode)
					}
				}
			}
		}
	}
}
