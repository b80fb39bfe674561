package service

import (
	"fmt"
	"math/rand/v2"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

// openingCells are the center and the four corners.
var openingCells = [...]int{4, 0, 2, 6, 8}

type BotService interface {
	SelectMove(board entity.Board, difficulty entity.Difficulty, botMark entity.Mark) (int, error)
}

type BotOption func(*botService)

// WithRandom replaces the random source; intn must return a value in [0, n).
func WithRandom(intn func(n int) int) BotOption {
	return func(that *botService) {
		that.intn = intn
	}
}

// WithOpeningShortcut toggles the random center-or-corner pick on an empty board for hard bots.
// When disabled, hard bots run the full search from the first move.
func WithOpeningShortcut(enabled bool) BotOption {
	return func(that *botService) {
		that.openingShortcut = enabled
	}
}

type botService struct {
	intn            func(n int) int
	openingShortcut bool
}

func NewBotService(opts ...BotOption) BotService {
	bot := &botService{
		intn:            rand.IntN,
		openingShortcut: true,
	}

	for _, opt := range opts {
		opt(bot)
	}

	return bot
}

func (that *botService) SelectMove(board entity.Board, difficulty entity.Difficulty, botMark entity.Mark) (int, error) {
	if board.IsFull() {
		return 0, apperror.ErrNoAvailableMoves
	}

	switch difficulty {
	case entity.EasyDifficulty:
		return that.easyMove(board), nil
	case entity.MediumDifficulty:
		return that.mediumMove(board, botMark), nil
	case entity.HardDifficulty:
		return that.hardMove(board, botMark), nil
	default:
		return 0, fmt.Errorf("%w: %q", apperror.ErrUnknownDifficulty, difficulty)
	}
}

func (that *botService) easyMove(board entity.Board) int {
	availableCells := board.EmptyIndices()

	return availableCells[that.intn(len(availableCells))]
}

// mediumMove wins if it can, blocks if it must, otherwise plays randomly.
func (that *botService) mediumMove(board entity.Board, botMark entity.Mark) int {
	if cell, ok := findWinningMove(board, botMark); ok {
		return cell
	}

	if cell, ok := findWinningMove(board, botMark.Opponent()); ok {
		return cell
	}

	return that.easyMove(board)
}

func (that *botService) hardMove(board entity.Board, botMark entity.Mark) int {
	if that.openingShortcut && len(board.EmptyIndices()) == len(board) {
		return openingCells[that.intn(len(openingCells))]
	}

	cell, _ := minimax(board, botMark, botMark)
	if cell < 0 {
		// already decided board, nothing left to search
		return that.easyMove(board)
	}

	return cell
}

// findWinningMove returns the empty cell of the first line holding exactly two of mark.
func findWinningMove(board entity.Board, mark entity.Mark) (int, bool) {
	for _, line := range entity.Lines {
		owned, empty := 0, -1
		for _, index := range line {
			switch board[index] {
			case mark:
				owned++
			case entity.EmptyCell:
				empty = index
			}
		}

		if owned == 2 && empty >= 0 {
			return empty, true
		}
	}

	return -1, false
}
