package opt

import "math/rand"

// Pair is an unordered pair of interior route positions, I < J.
type Pair struct{ I, J int }

// Neighborhood is the pool of swap positions not yet tried for one baseline
// route. Pairs are consumed, never regenerated; a new baseline gets a new pool.
type Neighborhood struct {
	pairs []Pair
	index map[Pair]int
}

// NewNeighborhood returns every pair (i, j) with 1 <= i < j <= routeLen-2, so
// the depot endpoints never move.
func NewNeighborhood(routeLen int) *Neighborhood {
	nb := &Neighborhood{index: map[Pair]int{}}
	for i := 1; i < routeLen-1; i++ {
		for j := i + 1; j < routeLen-1; j++ {
			p := Pair{I: i, J: j}
			nb.index[p] = len(nb.pairs)
			nb.pairs = append(nb.pairs, p)
		}
	}
	return nb
}

func (nb *Neighborhood) Len() int { return len(nb.pairs) }

func (nb *Neighborhood) Exhausted() bool { return len(nb.pairs) == 0 }

func (nb *Neighborhood) contains(p Pair) bool {
	_, ok := nb.index[p]
	return ok
}

// Draw returns a random unused pair without consuming it.
func (nb *Neighborhood) Draw(rng *rand.Rand) (Pair, bool) {
	if len(nb.pairs) == 0 {
		return Pair{}, false
	}
	return nb.pairs[rng.Intn(len(nb.pairs))], true
}

// Remove consumes p. It reports false if p was already consumed.
func (nb *Neighborhood) Remove(p Pair) bool {
	if !nb.contains(p) {
		return false
	}
	i := nb.index[p]
	last := len(nb.pairs) - 1
	nb.pairs[i] = nb.pairs[last]
	nb.index[nb.pairs[i]] = i
	nb.pairs = nb.pairs[:last]
	delete(nb.index, p)
	return true
}

// Take draws a random pair and consumes it.
func (nb *Neighborhood) Take(rng *rand.Rand) (Pair, bool) {
	p, ok := nb.Draw(rng)
	if ok {
		nb.Remove(p)
	}
	return p, ok
}

func (nb *Neighborhood) Clone() *Neighborhood {
	out := &Neighborhood{pairs: append([]Pair(nil), nb.pairs...), index: make(map[Pair]int, len(nb.index))}
	for p, i := range nb.index {
		out.index[p] = i
	}
	return out
}

// Swap returns a copy of stops with positions p.I and p.J exchanged.
func Swap(stops []int, p Pair) []int {
	out := append([]int(nil), stops...)
	out[p.I], out[p.J] = out[p.J], out[p.I]
	return out
}
