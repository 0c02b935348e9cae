package opt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegalActionsTable(t *testing.T) {
	cases := []struct {
		empty, full int
		want        []Action
	}{
		{0, 0, []Action{ActionPickup}},
		{0, 1, []Action{ActionDump, ActionPickup}},
		{0, 2, []Action{ActionDump}},
		{1, 0, []Action{ActionPickup, ActionDeliver}},
		{1, 1, []Action{ActionDump, ActionDeliver}},
		{2, 0, []Action{ActionDeliver}},
	}
	for _, tc := range cases {
		v := VehicleState{Empty: tc.empty, Full: tc.full}
		assert.Equal(t, tc.want, LegalActions(v, true, true), "state %s", v)
	}
}

func TestLegalActionsFiltersByNeedSets(t *testing.T) {
	assert.Empty(t, LegalActions(VehicleState{}, false, true))
	assert.Equal(t, []Action{ActionDump}, LegalActions(VehicleState{Full: 1}, false, true))
	assert.Equal(t, []Action{ActionPickup}, LegalActions(VehicleState{Empty: 1}, true, false))
	assert.Equal(t, []Action{ActionDump}, LegalActions(VehicleState{Empty: 1, Full: 1}, true, false))
	assert.Empty(t, LegalActions(VehicleState{Empty: 2}, true, false))
}

func TestVehiclePredicates(t *testing.T) {
	assert.True(t, VehicleState{}.CanPickup())
	assert.True(t, VehicleState{Empty: 1}.CanPickup())
	assert.False(t, VehicleState{Empty: 1, Full: 1}.CanPickup())
	assert.False(t, VehicleState{Full: 2}.CanPickup())
	assert.False(t, VehicleState{Full: 2}.CanDeliver())
	assert.True(t, VehicleState{Empty: 1}.CanDeliver())
}

func TestTourTransitions(t *testing.T) {
	m := DistanceMatrix{
		{0, 1, 2, 3},
		{1, 0, 1, 2},
		{2, 1, 0, 1},
		{3, 2, 1, 0},
	}
	tr := newTour(m)
	require.NoError(t, tr.pickup(1))
	require.NoError(t, tr.pickup(2))
	assert.Equal(t, VehicleState{Full: 2, Position: 2}, tr.vehicle)

	err := tr.pickup(3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacityViolation))
	assert.Equal(t, 2.0, tr.cost, "failed transition must not move the vehicle")

	tr.dump()
	assert.Equal(t, VehicleState{Empty: 2}, tr.vehicle)
	assert.Equal(t, 4.0, tr.cost)
	assert.Equal(t, []int{3}, tr.pickups.items)
	assert.Equal(t, []int{1, 2}, tr.deliveries.items)

	require.NoError(t, tr.deliver(2))
	require.NoError(t, tr.deliver(1))
	assert.ErrorIs(t, tr.deliver(3), ErrCapacityViolation)
	assert.Equal(t, 0, tr.deliveries.len())
}

func TestClientSetKeepsOrder(t *testing.T) {
	s := newClientSet(5)
	for _, c := range []int{4, 1, 3, 2} {
		s.add(c)
	}
	s.add(1)
	s.remove(1)
	s.remove(5)
	assert.Equal(t, []int{4, 3, 2}, s.items)
	assert.False(t, s.has(1))
	assert.True(t, s.has(2))
	s.remove(4)
	s.add(1)
	assert.Equal(t, []int{3, 2, 1}, s.items)
	assert.Equal(t, 2, s.pos[1])
}
