package task

import (
	"fmt"

	"github.com/Strob0t/tasktimer/internal/domain"
)

// Direction is a reorder direction in display order.
type Direction int

const (
	Up   Direction = -1
	Down Direction = 1
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// ParseDirection maps "up" or "down" to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return 0, fmt.Errorf("%w: direction must be \"up\" or \"down\", got %q", domain.ErrValidation, s)
}

// Neighbor returns the position adjacent to pos in direction d among n
// tasks. It reports false at the boundaries (moving position 1 up or
// position n down), which callers treat as a no-op.
func Neighbor(pos, n int, d Direction) (int, bool) {
	next := pos + int(d)
	if pos < 1 || pos > n || next < 1 || next > n {
		return 0, false
	}
	return next, true
}

// ValidatePositions checks that the positions of tasks form a permutation
// of 1..len(tasks): no duplicates and no gaps.
func ValidatePositions(tasks []Task) error {
	n := len(tasks)
	seen := make([]bool, n+1)
	for i := range tasks {
		p := tasks[i].Position
		if p < 1 || p > n {
			return fmt.Errorf("%w: task %d has position %d outside 1..%d", domain.ErrConflict, tasks[i].ID, p, n)
		}
		if seen[p] {
			return fmt.Errorf("%w: position %d is held by more than one task", domain.ErrConflict, p)
		}
		seen[p] = true
	}
	return nil
}
