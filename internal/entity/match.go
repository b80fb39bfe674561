package entity

import (
	"time"
)

const (
	StatusWaiting  = "waiting"
	StatusActive   = "active"
	StatusFinished = "finished"
)

const (
	EndReasonNormal    = "normal"
	EndReasonForfeit   = "forfeit"
	EndReasonAbandoned = "abandoned"
)

const MaxParticipants = 2

type Participant struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Mark   Mark   `json:"mark"`
	Ready  bool   `json:"ready"`
}

type Match struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Participants []*Participant `json:"participants"`
	Board        Board          `json:"board"`
	Turn         Mark           `json:"turn"`
	Winner       Mark           `json:"winner,omitempty"`
	EndReason    string         `json:"end_reason,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewMatch seats the host as X and leaves the match waiting for an opponent.
func NewMatch(id string, host *Participant, now time.Time) *Match {
	host.Mark = MarkX
	host.Ready = true

	return &Match{
		ID:           id,
		Status:       StatusWaiting,
		Participants: []*Participant{host},
		Turn:         MarkX,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (that *Match) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Match) IsActive() bool {
	return that.Status == StatusActive
}

func (that *Match) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Match) IsJoinable() bool {
	return that.IsWaiting() && len(that.Participants) < MaxParticipants
}

func (that *Match) Participant(id string) *Participant {
	for _, participant := range that.Participants {
		if participant.ID == id {
			return participant
		}
	}

	return nil
}

// HasUser reports whether userID is seated in the match.
func (that *Match) HasUser(userID string) bool {
	for _, participant := range that.Participants {
		if participant.UserID == userID {
			return true
		}
	}

	return false
}

// Opponent returns the participant that is not id, if seated.
func (that *Match) Opponent(id string) *Participant {
	for _, participant := range that.Participants {
		if participant.ID != id {
			return participant
		}
	}

	return nil
}

// Outcome of the match. A forfeit is not visible on the board, so the stored winner wins.
func (that *Match) Outcome() Outcome {
	if that.EndReason == EndReasonForfeit && that.Winner.IsPlayer() {
		return WinOutcome(that.Winner)
	}

	return Evaluate(that.Board)
}

// Finish moves the match to its terminal state with the given winner (a mark or MarkTie).
func (that *Match) Finish(winner Mark, reason string, now time.Time) {
	that.Status = StatusFinished
	that.Winner = winner
	that.EndReason = reason
	that.Turn = EmptyCell
	that.UpdatedAt = now
}

// IsStale reports whether the match has seen no activity for longer than staleAfter.
func (that *Match) IsStale(now time.Time, staleAfter time.Duration) bool {
	return now.Sub(that.UpdatedAt) > staleAfter
}

// Clone returns a deep copy so callers can't mutate stored state.
func (that *Match) Clone() *Match {
	clone := *that
	clone.Participants = make([]*Participant, 0, len(that.Participants))
	for _, participant := range that.Participants {
		p := *participant
		clone.Participants = append(clone.Participants, &p)
	}

	return &clone
}

// HistoryRecord is the immutable summary appended when a match finishes.
type HistoryRecord struct {
	ID           string        `json:"id"`
	MatchID      string        `json:"match_id"`
	Participants []Participant `json:"participants"`
	Board        Board         `json:"board"`
	Winner       Mark          `json:"winner"`
	EndReason    string        `json:"end_reason"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

func NewHistoryRecord(id string, match *Match) *HistoryRecord {
	participants := make([]Participant, 0, len(match.Participants))
	for _, participant := range match.Participants {
		participants = append(participants, *participant)
	}

	return &HistoryRecord{
		ID:           id,
		MatchID:      match.ID,
		Participants: participants,
		Board:        match.Board,
		Winner:       match.Winner,
		EndReason:    match.EndReason,
		StartedAt:    match.CreatedAt,
		FinishedAt:   match.UpdatedAt,
	}
}
