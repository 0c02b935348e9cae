package opt

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// InfeasibleCost marks a route whose replay hit an illegal transition.
const InfeasibleCost = -1.0

// Route is an ordered stop sequence starting and ending at the depot. Whether
// a client stop is a pickup or a delivery is decided during replay.
type Route struct {
	Stops []int
	Cost  float64
}

func (r Route) Feasible() bool { return r.Cost >= 0 }

// Clone returns a copy that shares no memory with r.
func (r Route) Clone() Route {
	return Route{Stops: append([]int(nil), r.Stops...), Cost: r.Cost}
}

// Key identifies the stop sequence; equal sequences have equal keys.
func (r Route) Key() string { return stopsKey(r.Stops) }

func stopsKey(stops []int) string {
	var b strings.Builder
	b.Grow(len(stops) * 3)
	for i, s := range stops {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(s))
	}
	return b.String()
}

// ReplayMode selects how a stop that is neither a pending pickup nor a
// pending delivery is handled.
type ReplayMode int

const (
	// ReplayStrict rejects unclassified stops and routes that leave clients unserved.
	ReplayStrict ReplayMode = iota
	// ReplayLenient skips unclassified stops without cost.
	ReplayLenient
)

func (m ReplayMode) String() string {
	if m == ReplayLenient {
		return "lenient"
	}
	return "strict"
}

// ParseReplayMode accepts "strict", "lenient" or "" (strict).
func ParseReplayMode(s string) (ReplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return ReplayStrict, nil
	case "lenient":
		return ReplayLenient, nil
	}
	return ReplayStrict, fmt.Errorf("unknown replay mode %q", s)
}

// Step describes one processed stop during Simulate.
type Step struct {
	Index   int
	Stop    int
	Action  Action
	Skipped bool
	State   VehicleState
	Cost    float64
}

// Construct builds a random feasible route: at every step it picks uniformly
// among the legal actions of the current capacity state, then uniformly among
// the clients that action can serve. It always ends with a dump.
func Construct(m DistanceMatrix, rng *rand.Rand) (Route, error) {
	t := newTour(m)
	stops := make([]int, 0, 2*m.Clients()+2)

	t.dump()
	stops = append(stops, Depot)

	for !t.done() {
		actions := LegalActions(t.vehicle, t.pickups.len() > 0, t.deliveries.len() > 0)
		if len(actions) == 0 {
			return Route{Cost: InfeasibleCost}, fmt.Errorf("construct: state %s: %w", t.vehicle, ErrNoLegalAction)
		}
		action := actions[0]
		if len(actions) > 1 {
			action = actions[rng.Intn(len(actions))]
		}

		var err error
		stop := Depot
		switch action {
		case ActionPickup:
			stop = t.pickups.items[rng.Intn(t.pickups.len())]
			err = t.pickup(stop)
		case ActionDeliver:
			stop = t.deliveries.items[rng.Intn(t.deliveries.len())]
			err = t.deliver(stop)
		case ActionDump:
			t.dump()
		}
		if err != nil {
			return Route{Cost: InfeasibleCost}, fmt.Errorf("construct: %w", err)
		}
		stops = append(stops, stop)
	}

	t.dump()
	stops = append(stops, Depot)
	return Route{Stops: stops, Cost: t.cost}, nil
}

// Replay scores stops from a reset vehicle. On any failure the returned cost
// is InfeasibleCost.
func Replay(m DistanceMatrix, stops []int, mode ReplayMode) (float64, error) {
	return Simulate(m, stops, mode, nil)
}

// Simulate is Replay with a callback invoked after every processed stop.
func Simulate(m DistanceMatrix, stops []int, mode ReplayMode, observe func(Step)) (float64, error) {
	t := newTour(m)
	n := m.Size()
	for i, s := range stops {
		if s < 0 || s >= n {
			return InfeasibleCost, fmt.Errorf("replay: position %d: stop %d not in [0,%d): %w", i, s, n, ErrStopOutOfRange)
		}

		var (
			action Action
			err    error
		)
		switch {
		case s == Depot:
			action = ActionDump
			t.dump()
		case t.pickups.has(s):
			action = ActionPickup
			err = t.pickup(s)
		case t.deliveries.has(s):
			action = ActionDeliver
			err = t.deliver(s)
		default:
			if mode == ReplayStrict {
				return InfeasibleCost, fmt.Errorf("replay: position %d: client %d: %w", i, s, ErrUnclassifiedStop)
			}
			if observe != nil {
				observe(Step{Index: i, Stop: s, Skipped: true, State: t.vehicle, Cost: t.cost})
			}
			continue
		}
		if err != nil {
			return InfeasibleCost, fmt.Errorf("replay: position %d: %w", i, err)
		}
		if observe != nil {
			observe(Step{Index: i, Stop: s, Action: action, State: t.vehicle, Cost: t.cost})
		}
	}
	if mode == ReplayStrict && !t.done() {
		return InfeasibleCost, fmt.Errorf("replay: %d pickups and %d deliveries pending: %w",
			t.pickups.len(), t.deliveries.len(), ErrIncompleteRoute)
	}
	return t.cost, nil
}

// ValidateShape checks the output contract of a route over n nodes: it starts
// and ends at the depot and visits every client exactly twice.
func ValidateShape(stops []int, n int) error {
	if len(stops) < 2 || stops[0] != Depot || stops[len(stops)-1] != Depot {
		return fmt.Errorf("route must start and end at the depot: %v", stops)
	}
	seen := make([]int, n)
	for i, s := range stops {
		if s < 0 || s >= n {
			return fmt.Errorf("position %d: stop %d: %w", i, s, ErrStopOutOfRange)
		}
		seen[s]++
	}
	for c := 1; c < n; c++ {
		if seen[c] != 2 {
			return fmt.Errorf("client %d visited %d times, want 2", c, seen[c])
		}
	}
	return nil
}
