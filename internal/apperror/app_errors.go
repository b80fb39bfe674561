package apperror

import "errors"

var (
	ErrInvalidMove         = errors.New("invalid move")
	ErrIllegalMove         = errors.New("illegal move")
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchNotJoinable    = errors.New("match is not joinable")
	ErrMatchExists         = errors.New("match already exists")
	ErrGameFinished        = errors.New("game is already finished")
	ErrNotYourTurn         = errors.New("it's not your turn")
	ErrCellOccupied        = errors.New("cell is already occupied")
	ErrInvalidCell         = errors.New("invalid cell index")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNoAvailableMoves    = errors.New("no available moves")
	ErrResetNotSupported   = errors.New("room sessions can't be reset, leave and start a new one")
	ErrSessionNotFound     = errors.New("session not found")
	ErrUnknownDifficulty   = errors.New("unknown difficulty")
)
