package opt

import "fmt"

// Slots is the number of containers the vehicle can carry, empty or full.
const Slots = 2

type Action int

const (
	ActionPickup  Action = iota // collect a client's full container
	ActionDeliver               // drop an empty container at a client
	ActionDump                  // return to the depot and swap full for empty
)

func (a Action) String() string {
	switch a {
	case ActionPickup:
		return "pickup"
	case ActionDeliver:
		return "deliver"
	case ActionDump:
		return "dump"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// VehicleState is the capacity automaton: containers onboard and position.
type VehicleState struct {
	Empty    int
	Full     int
	Position int
}

func (v VehicleState) String() string {
	return fmt.Sprintf("(empty=%d full=%d pos=%d)", v.Empty, v.Full, v.Position)
}

// CanPickup reports whether a free slot exists.
func (v VehicleState) CanPickup() bool { return v.Empty+v.Full < Slots }

// CanDeliver reports whether an empty container is onboard.
func (v VehicleState) CanDeliver() bool { return v.Empty > 0 }

type requirement int

const (
	always requirement = iota
	pickupsLeft
	deliveriesLeft
)

type actionRule struct {
	action Action
	needs  requirement
}

type capacityKey struct{ empty, full int }

// actionTable lists, for every reachable (empty, full) pair, the actions the
// construction policy may choose from.
var actionTable = map[capacityKey][]actionRule{
	{0, 0}: {{ActionPickup, pickupsLeft}},
	{0, 1}: {{ActionDump, always}, {ActionPickup, pickupsLeft}},
	{0, 2}: {{ActionDump, always}},
	{1, 0}: {{ActionPickup, pickupsLeft}, {ActionDeliver, deliveriesLeft}},
	{1, 1}: {{ActionDump, always}, {ActionDeliver, deliveriesLeft}},
	{2, 0}: {{ActionDeliver, deliveriesLeft}},
}

// LegalActions returns the actions available in state v given which need-sets
// are non-empty. The result is in table order.
func LegalActions(v VehicleState, pickups, deliveries bool) []Action {
	rules := actionTable[capacityKey{v.Empty, v.Full}]
	out := make([]Action, 0, len(rules))
	for _, r := range rules {
		switch r.needs {
		case pickupsLeft:
			if !pickups {
				continue
			}
		case deliveriesLeft:
			if !deliveries {
				continue
			}
		}
		out = append(out, r.action)
	}
	return out
}

// tour tracks one construction or replay pass: the vehicle, the clients
// still waiting for each action and the accumulated cost.
type tour struct {
	m          DistanceMatrix
	vehicle    VehicleState
	pickups    clientSet
	deliveries clientSet
	cost       float64
}

func newTour(m DistanceMatrix) *tour {
	t := &tour{m: m}
	t.reset()
	return t
}

func (t *tour) reset() {
	n := t.m.Clients()
	t.vehicle = VehicleState{}
	t.pickups = newClientSet(n)
	t.deliveries = newClientSet(n)
	for c := 1; c <= n; c++ {
		t.pickups.add(c)
	}
	t.cost = 0
}

func (t *tour) done() bool { return t.pickups.len() == 0 && t.deliveries.len() == 0 }

func (t *tour) moveTo(node int) {
	t.cost += t.m.Dist(t.vehicle.Position, node)
	t.vehicle.Position = node
}

func (t *tour) pickup(client int) error {
	if !t.vehicle.CanPickup() {
		return fmt.Errorf("pickup at %d with %s: %w", client, t.vehicle, ErrCapacityViolation)
	}
	t.moveTo(client)
	t.vehicle.Full++
	t.pickups.remove(client)
	t.deliveries.add(client)
	return nil
}

func (t *tour) deliver(client int) error {
	if !t.vehicle.CanDeliver() {
		return fmt.Errorf("delivery at %d with %s: %w", client, t.vehicle, ErrCapacityViolation)
	}
	t.moveTo(client)
	t.vehicle.Empty--
	t.deliveries.remove(client)
	return nil
}

func (t *tour) dump() {
	t.moveTo(Depot)
	t.vehicle.Empty += t.vehicle.Full
	t.vehicle.Full = 0
}

// clientSet is an insertion-ordered set of client indices. Order matters:
// random picks index into it, so a fixed seed gives a fixed route.
type clientSet struct {
	items []int
	pos   []int // client -> index in items, -1 when absent
}

func newClientSet(n int) clientSet {
	pos := make([]int, n+1)
	for i := range pos {
		pos[i] = -1
	}
	return clientSet{items: make([]int, 0, n), pos: pos}
}

func (s *clientSet) len() int { return len(s.items) }

func (s *clientSet) has(c int) bool { return c >= 0 && c < len(s.pos) && s.pos[c] >= 0 }

func (s *clientSet) add(c int) {
	if s.has(c) {
		return
	}
	s.pos[c] = len(s.items)
	s.items = append(s.items, c)
}

func (s *clientSet) remove(c int) {
	i := s.pos[c]
	if i < 0 {
		return
	}
	copy(s.items[i:], s.items[i+1:])
	s.items = s.items[:len(s.items)-1]
	for j := i; j < len(s.items); j++ {
		s.pos[s.items[j]] = j
	}
	s.pos[c] = -1
}
