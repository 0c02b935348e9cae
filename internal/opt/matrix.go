package opt

import (
	"fmt"
	"math"
)

// Depot is the node where full containers are exchanged for empty ones.
const Depot = 0

// DistanceMatrix holds travel costs; row/column 0 is the depot. Asymmetric
// costs are allowed.
type DistanceMatrix [][]float64

// Validate checks the matrix is square, has at least one client and holds
// only finite non-negative costs.
func (m DistanceMatrix) Validate() error {
	n := len(m)
	if n < 2 {
		return fmt.Errorf("%w: need depot and at least one client, got %d rows", ErrInvalidMatrix, n)
	}
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidMatrix, i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("%w: entry [%d][%d] = %v", ErrInvalidMatrix, i, j, v)
			}
		}
	}
	return nil
}

// Size is N, the number of nodes including the depot.
func (m DistanceMatrix) Size() int { return len(m) }

// Clients is N-1.
func (m DistanceMatrix) Clients() int { return len(m) - 1 }

func (m DistanceMatrix) Dist(from, to int) float64 { return m[from][to] }
