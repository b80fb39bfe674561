package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
)

type Mark string

const (
	MarkX     Mark = "X"
	MarkO     Mark = "O"
	EmptyCell Mark = ""

	// MarkTie is stored as the winner of a drawn match.
	MarkTie Mark = "-"
)

// Opponent returns the other player's mark.
func (that Mark) Opponent() Mark {
	switch that {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	default:
		return EmptyCell
	}
}

func (that Mark) IsPlayer() bool {
	return that == MarkX || that == MarkO
}

// Lines are scanned in this order: rows, columns, diagonals.
var Lines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board is a row-major 3x3 grid. It is a value type, so passing it around copies it.
type Board [9]Mark

type OutcomeKind int

const (
	InProgress OutcomeKind = iota
	Win
	Draw
)

func (that OutcomeKind) String() string {
	switch that {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "in_progress"
	}
}

type Outcome struct {
	Kind   OutcomeKind
	Winner Mark
}

func (that Outcome) IsTerminal() bool {
	return that.Kind != InProgress
}

func WinOutcome(mark Mark) Outcome {
	return Outcome{Kind: Win, Winner: mark}
}

// Evaluate reports the first winning line in scan order, a draw on a full board, or InProgress.
func Evaluate(board Board) Outcome {
	for _, line := range Lines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != EmptyCell && a == b && b == c {
			return WinOutcome(a)
		}
	}

	for _, cell := range board {
		if cell == EmptyCell {
			return Outcome{Kind: InProgress}
		}
	}

	return Outcome{Kind: Draw}
}

func (that Board) EmptyIndices() []int {
	indices := make([]int, 0, len(that))
	for i, cell := range that {
		if cell == EmptyCell {
			indices = append(indices, i)
		}
	}

	return indices
}

func (that Board) IsFull() bool {
	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

func (that Board) Count(mark Mark) int {
	count := 0
	for _, cell := range that {
		if cell == mark {
			count++
		}
	}

	return count
}

// ApplyMove returns a copy of the board with mark placed at index.
func (that Board) ApplyMove(index int, mark Mark) (Board, error) {
	if index < 0 || index >= len(that) {
		return that, fmt.Errorf("%w: %w: cell %d", apperror.ErrInvalidMove, apperror.ErrInvalidCell, index)
	}

	if that[index] != EmptyCell {
		return that, fmt.Errorf("%w: %w: cell %d", apperror.ErrInvalidMove, apperror.ErrCellOccupied, index)
	}

	next := that
	next[index] = mark

	return next, nil
}

// NextMark derives whose turn it is from the mark counts, X moving first.
func (that Board) NextMark() Mark {
	if that.Count(MarkX) > that.Count(MarkO) {
		return MarkO
	}

	return MarkX
}
