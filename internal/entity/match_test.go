package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatch(t *testing.T) {
	// Given: a host participant
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	host := &Participant{ID: "p1", Name: "alice"}

	// When: a match is created
	match := NewMatch("1234", host, now)

	// Then: the host is X and the match waits for an opponent
	expected := &Match{
		ID:           "1234",
		Status:       StatusWaiting,
		Participants: []*Participant{{ID: "p1", Name: "alice", Mark: MarkX, Ready: true}},
		Turn:         MarkX,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.Equal(t, expected, match)
	assert.True(t, match.IsJoinable())
}

func TestMatch_StatusMethods(t *testing.T) {
	assert.True(t, (&Match{Status: StatusWaiting}).IsWaiting())
	assert.True(t, (&Match{Status: StatusActive}).IsActive())
	assert.True(t, (&Match{Status: StatusFinished}).IsFinished())
	assert.False(t, (&Match{Status: StatusActive}).IsJoinable())
}

func TestMatch_Outcome(t *testing.T) {
	t.Run("Forfeit winner overrides the board", func(t *testing.T) {
		// Given: a match finished by forfeit on an undecided board
		match := &Match{Board: Board{MarkX}}
		match.Finish(MarkO, EndReasonForfeit, time.Now())

		// When: reading the outcome
		outcome := match.Outcome()

		// Then: O wins
		assert.Equal(t, WinOutcome(MarkO), outcome)
		assert.Equal(t, EmptyCell, match.Turn)
	})

	t.Run("Normal finish is derived from the board", func(t *testing.T) {
		// Given: a match where X completed a row
		match := &Match{Board: Board{MarkX, MarkX, MarkX, MarkO, MarkO}}

		// When: reading the outcome
		outcome := match.Outcome()

		// Then: X wins
		assert.Equal(t, WinOutcome(MarkX), outcome)
	})
}

func TestMatch_Clone(t *testing.T) {
	// Given: a match with a participant
	match := NewMatch("1", &Participant{ID: "p1"}, time.Now())

	// When: the clone is mutated
	clone := match.Clone()
	clone.Participants[0].Name = "changed"
	clone.Board[0] = MarkX

	// Then: the original stays the same
	assert.Empty(t, match.Participants[0].Name)
	assert.Equal(t, EmptyCell, match.Board[0])
}

func TestMatch_IsStale(t *testing.T) {
	now := time.Now()
	match := &Match{UpdatedAt: now.Add(-2 * time.Hour)}

	assert.True(t, match.IsStale(now, time.Hour))
	assert.False(t, match.IsStale(now, 3*time.Hour))
}

func TestResultFor(t *testing.T) {
	result, delta := ResultFor(WinOutcome(MarkX), MarkX)
	assert.Equal(t, ResultWin, result)
	assert.Equal(t, 1, delta)

	result, delta = ResultFor(WinOutcome(MarkO), MarkX)
	assert.Equal(t, ResultLoss, result)
	assert.Equal(t, -1, delta)

	result, delta = ResultFor(Outcome{Kind: Draw}, MarkO)
	assert.Equal(t, ResultDraw, result)
	assert.Equal(t, 0, delta)
}

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty("hard")
	require.NoError(t, err)
	assert.Equal(t, HardDifficulty, d)

	d, err = ParseDifficulty("")
	require.NoError(t, err)
	assert.Equal(t, MediumDifficulty, d)

	_, err = ParseDifficulty("impossible")
	assert.Error(t, err)
}

func TestMatch_HasUser(t *testing.T) {
	match := NewMatch("1", &Participant{ID: "p1", UserID: "alice"}, time.Now())
	match.Participants = append(match.Participants, &Participant{ID: "p2", UserID: "bob", Mark: MarkO})

	assert.True(t, match.HasUser("alice"))
	assert.True(t, match.HasUser("bob"))
	assert.False(t, match.HasUser("carol"))
	assert.False(t, match.HasUser(""))
}
