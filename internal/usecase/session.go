package usecase

import (
	"sync"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/poll"
)

const (
	ModeAI   = "ai"
	ModeRoom = "room"
)

// Session is one user's play session. All fields are guarded by mu because the room
// watcher and user actions may touch it at the same time.
type Session struct {
	mu sync.Mutex

	id         string
	user       entity.User
	mode       string
	difficulty entity.Difficulty
	humanMark  entity.Mark

	board   entity.Board
	turn    entity.Mark
	outcome entity.Outcome

	matchID       string
	participantID string
	match         *entity.Match
	watch         *poll.Subscription
	left          bool

	// bumped on reset so a pending bot move can tell the board changed under it
	generation int

	finalized  bool
	result     string
	scoreDelta int
}

// SessionView is a point-in-time copy of a session, safe to serialize.
type SessionView struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Mode       string            `json:"mode"`
	Difficulty entity.Difficulty `json:"difficulty,omitempty"`
	HumanMark  entity.Mark       `json:"human_mark"`
	Board      entity.Board      `json:"board"`
	Turn       entity.Mark       `json:"turn"`
	Outcome    string            `json:"outcome"`
	Winner     entity.Mark       `json:"winner,omitempty"`
	Finished   bool              `json:"finished"`
	Result     string            `json:"result,omitempty"`
	ScoreDelta int               `json:"score_delta"`

	MatchID     string `json:"match_id,omitempty"`
	MatchStatus string `json:"match_status,omitempty"`
	EndReason   string `json:"end_reason,omitempty"`
	Opponent    string `json:"opponent,omitempty"`
}

func (that *Session) ID() string {
	return that.id
}

func (that *Session) UserID() string {
	return that.user.ID
}

func (that *Session) Mode() string {
	return that.mode
}

func (that *Session) MatchID() string {
	return that.matchID
}

func (that *Session) IsFinished() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.finalized
}

// stopWatch ends the room watcher, if any. It must not be called with mu held.
func (that *Session) stopWatch() {
	that.mu.Lock()
	watch := that.watch
	that.watch = nil
	that.mu.Unlock()

	if watch != nil {
		watch.Close()
	}
}

func (that *Session) View() SessionView {
	that.mu.Lock()
	defer that.mu.Unlock()

	view := SessionView{
		ID:         that.id,
		UserID:     that.user.ID,
		Mode:       that.mode,
		Difficulty: that.difficulty,
		HumanMark:  that.humanMark,
		Board:      that.board,
		Turn:       that.turn,
		Outcome:    that.outcome.Kind.String(),
		Winner:     that.outcome.Winner,
		Finished:   that.finalized,
		Result:     that.result,
		ScoreDelta: that.scoreDelta,
		MatchID:    that.matchID,
	}

	if that.match != nil {
		view.MatchStatus = that.match.Status
		view.EndReason = that.match.EndReason

		if opponent := that.match.Opponent(that.participantID); opponent != nil {
			view.Opponent = opponent.Name
		}
	}

	return view
}

// resultMode is the mode string stored with the game result.
func (that *Session) resultMode() string {
	if that.mode == ModeRoom {
		return entity.ModeRoom
	}

	return string(that.difficulty)
}
