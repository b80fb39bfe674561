package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

type mockBotService struct {
	mock.Mock
}

func newMockBotService() *mockBotService {
	return &mockBotService{}
}

func (that *mockBotService) SelectMove(board entity.Board, difficulty entity.Difficulty, botMark entity.Mark) (int, error) {
	args := that.Called(board, difficulty, botMark)
	return args.Int(0), args.Error(1)
}

// expectMoves queues the bot's answers in order.
func (that *mockBotService) expectMoves(difficulty entity.Difficulty, cells ...int) {
	for _, cell := range cells {
		that.On("SelectMove", mock.Anything, difficulty, entity.MarkO).Return(cell, nil).Once()
	}
}

type mockResultRecorder struct {
	mock.Mock
}

func newMockResultRecorder() *mockResultRecorder {
	return &mockResultRecorder{}
}

func (that *mockResultRecorder) RecordGameResult(ctx context.Context, userID, outcome string, scoreDelta int, mode string) error {
	args := that.Called(ctx, userID, outcome, scoreDelta, mode)
	return args.Error(0)
}
