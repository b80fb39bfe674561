package entity

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
)

// User is the already-authenticated identity playing a session.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Difficulty string

const (
	EasyDifficulty   Difficulty = "easy"
	MediumDifficulty Difficulty = "medium"
	HardDifficulty   Difficulty = "hard"
)

func ParseDifficulty(value string) (Difficulty, error) {
	switch d := Difficulty(value); d {
	case EasyDifficulty, MediumDifficulty, HardDifficulty:
		return d, nil
	case "":
		return MediumDifficulty, nil
	default:
		return "", fmt.Errorf("%w: %q", apperror.ErrUnknownDifficulty, value)
	}
}

const (
	ResultWin  = "win"
	ResultDraw = "draw"
	ResultLoss = "loss"
)

// ModeRoom is the result mode for games against another human. AI games use the difficulty name.
const ModeRoom = "room"

// ResultFor converts a terminal outcome to the user's result and score delta.
func ResultFor(outcome Outcome, userMark Mark) (string, int) {
	switch {
	case outcome.Kind == Draw:
		return ResultDraw, 0
	case outcome.Kind == Win && outcome.Winner == userMark:
		return ResultWin, 1
	default:
		return ResultLoss, -1
	}
}

type GameResult struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Outcome    string    `json:"outcome"`
	ScoreDelta int       `json:"score_delta"`
	Mode       string    `json:"mode"`
	PlayedAt   time.Time `json:"played_at"`
}

type UserStats struct {
	UserID      string     `json:"user_id"`
	GamesPlayed int        `json:"games_played"`
	Wins        int        `json:"wins"`
	Losses      int        `json:"losses"`
	Draws       int        `json:"draws"`
	Score       int        `json:"score"`
	WinRate     int        `json:"win_rate"`
	LastPlayed  *time.Time `json:"last_played,omitempty"`
}
