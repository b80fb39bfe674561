package service

import (
	"math"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

const (
	scoreWin  = 10
	scoreLoss = -10
	scoreDraw = 0
)

// minimax searches the whole game tree without pruning. Terminal scores carry no depth
// discount, so among winning lines the first one in index order is kept even if it is slower.
// It returns the chosen cell (-1 on a terminal board) and its score for botMark.
func minimax(board entity.Board, player, botMark entity.Mark) (int, int) {
	switch outcome := entity.Evaluate(board); outcome.Kind {
	case entity.Win:
		if outcome.Winner == botMark {
			return -1, scoreWin
		}
		return -1, scoreLoss
	case entity.Draw:
		return -1, scoreDraw
	case entity.InProgress:
	}

	maximizing := player == botMark

	bestCell, bestScore := -1, math.MinInt
	if !maximizing {
		bestScore = math.MaxInt
	}

	for i, cell := range board {
		if cell != entity.EmptyCell {
			continue
		}

		board[i] = player
		_, score := minimax(board, player.Opponent(), botMark)
		board[i] = entity.EmptyCell

		if (maximizing && score > bestScore) || (!maximizing && score < bestScore) {
			bestCell, bestScore = i, score
		}
	}

	return bestCell, bestScore
}
