package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-arena/internal/poll"
)

const (
	defaultStaleAfter        = time.Hour
	defaultFinishedRetention = 10 * time.Second

	maxRoomIDAttempts = 20
)

var (
	ErrRoomIDsExhausted = errors.New("no free room id found")

	errMatchNotStarted = errors.New("match has not started")
)

type RoomService interface {
	CreateMatch(ctx context.Context, host entity.User) (*entity.Match, error)
	JoinMatch(ctx context.Context, id string, joiner entity.User) (*entity.Match, error)
	SubmitMove(ctx context.Context, id string, cell int, participantID string) (*entity.Match, bool, error)
	LeaveMatch(ctx context.Context, id, participantID string) (*entity.Match, error)
	GetMatch(ctx context.Context, id string) (*entity.Match, error)
	Reap(ctx context.Context) (int, error)
	History(ctx context.Context, limit int) ([]*entity.HistoryRecord, error)
	Watch(ctx context.Context, id string, interval time.Duration, deliver func(*entity.Match) bool, onError func(error) bool) *poll.Subscription
}

type matchRepo interface {
	Create(ctx context.Context, match *entity.Match) error
	CreateOrUpdate(ctx context.Context, match *entity.Match) error
	GetByID(ctx context.Context, id string) (*entity.Match, error)
	DeleteByID(ctx context.Context, id string) error
	List(ctx context.Context) ([]*entity.Match, error)
}

type historyRepo interface {
	Append(ctx context.Context, record *entity.HistoryRecord) error
	List(ctx context.Context, limit int) ([]*entity.HistoryRecord, error)
}

type matchLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type RoomOption func(*roomService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RoomOption {
	return func(that *roomService) {
		that.now = now
	}
}

// WithStaleAfter sets how long a match may stay idle before Reap removes it.
func WithStaleAfter(staleAfter time.Duration) RoomOption {
	return func(that *roomService) {
		that.staleAfter = staleAfter
	}
}

// WithFinishedRetention keeps finished matches readable for a while so pollers can see the result.
func WithFinishedRetention(retention time.Duration) RoomOption {
	return func(that *roomService) {
		that.finishedRetention = retention
	}
}

// WithRoomIDGenerator replaces the random room id source.
func WithRoomIDGenerator(generate func() (string, error)) RoomOption {
	return func(that *roomService) {
		that.newRoomID = generate
	}
}

type roomService struct {
	logger *slog.Logger

	matchRepo   matchRepo
	historyRepo historyRepo
	locker      matchLocker

	now               func() time.Time
	newRoomID         func() (string, error)
	staleAfter        time.Duration
	finishedRetention time.Duration
}

func NewRoomService(logger *slog.Logger, matchRepo matchRepo, historyRepo historyRepo, locker matchLocker, opts ...RoomOption) RoomService {
	service := &roomService{
		logger:            logger.With("component", "room"),
		matchRepo:         matchRepo,
		historyRepo:       historyRepo,
		locker:            locker,
		now:               time.Now,
		newRoomID:         pkg.GenerateRoomID,
		staleAfter:        defaultStaleAfter,
		finishedRetention: defaultFinishedRetention,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// CreateMatch seats host as X in a new waiting match under an unused room id.
func (that *roomService) CreateMatch(ctx context.Context, host entity.User) (*entity.Match, error) {
	log := that.logger.With("method", "CreateMatch", "userID", host.ID)

	if removed, err := that.Reap(ctx); err != nil {
		log.Warn("failed to reap matches", "error", err)
	} else if removed > 0 {
		log.Debug("reaped matches", "count", removed)
	}

	for range maxRoomIDAttempts {
		id, err := that.newRoomID()
		if err != nil {
			return nil, err
		}

		participant := &entity.Participant{
			ID:     pkg.GenerateNewSessionID(),
			UserID: host.ID,
			Name:   host.Name,
		}

		match := entity.NewMatch(id, participant, that.now())

		err = that.matchRepo.Create(ctx, match)
		if errors.Is(err, apperror.ErrMatchExists) {
			log.Debug("room id is taken, retrying", "matchID", id)
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to create match: %w", err)
		}

		log.Info("match created", "matchID", id)

		return match, nil
	}

	return nil, ErrRoomIDsExhausted
}

// JoinMatch seats joiner as O and starts the match.
func (that *roomService) JoinMatch(ctx context.Context, id string, joiner entity.User) (*entity.Match, error) {
	log := that.logger.With("method", "JoinMatch", "matchID", id, "userID", joiner.ID)

	unlock, err := that.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	match, err := that.getMatch(ctx, id)
	if err != nil {
		return nil, err
	}

	if !match.IsJoinable() {
		return nil, fmt.Errorf("%w: %s is %s", apperror.ErrMatchNotJoinable, id, match.Status)
	}

	match.Participants = append(match.Participants, &entity.Participant{
		ID:     pkg.GenerateNewSessionID(),
		UserID: joiner.ID,
		Name:   joiner.Name,
		Mark:   entity.MarkO,
		Ready:  true,
	})
	match.Status = entity.StatusActive
	match.UpdatedAt = that.now()

	if err = that.matchRepo.CreateOrUpdate(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	log.Info("player joined match")

	return match, nil
}

// SubmitMove applies the participant's move. A rejected move returns the unchanged match with accepted=false.
func (that *roomService) SubmitMove(ctx context.Context, id string, cell int, participantID string) (*entity.Match, bool, error) {
	log := that.logger.With("method", "SubmitMove", "matchID", id, "participantID", participantID, "cell", cell)

	unlock, err := that.locker.Lock(ctx, id)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	match, err := that.getMatch(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if reason := rejectMove(match, participantID); reason != nil {
		log.Debug("move rejected", "reason", reason)
		return match, false, nil
	}

	participant := match.Participant(participantID)

	board, err := match.Board.ApplyMove(cell, participant.Mark)
	if err != nil {
		log.Debug("move rejected", "reason", err)
		return match, false, nil
	}

	match.Board = board
	match.UpdatedAt = that.now()

	outcome := entity.Evaluate(board)
	switch outcome.Kind {
	case entity.Win:
		match.Finish(outcome.Winner, entity.EndReasonNormal, match.UpdatedAt)
	case entity.Draw:
		match.Finish(entity.MarkTie, entity.EndReasonNormal, match.UpdatedAt)
	case entity.InProgress:
		match.Turn = participant.Mark.Opponent()
	}

	if err = that.matchRepo.CreateOrUpdate(ctx, match); err != nil {
		return nil, false, fmt.Errorf("failed to update match: %w", err)
	}

	if match.IsFinished() {
		that.appendHistory(ctx, log, match)
		log.Info("match finished", "outcome", outcome.Kind, "winner", match.Winner)
	}

	return match, true, nil
}

// rejectMove reports why the participant may not move right now, or nil.
func rejectMove(match *entity.Match, participantID string) error {
	if !match.IsActive() {
		if match.IsFinished() {
			return apperror.ErrGameFinished
		}
		return errMatchNotStarted
	}

	participant := match.Participant(participantID)
	if participant == nil {
		return apperror.ErrParticipantNotFound
	}

	if participant.Mark != match.Turn {
		return apperror.ErrNotYourTurn
	}

	return nil
}

// LeaveMatch ends an active match as a forfeit win for the remaining participant.
// A waiting match with only its host is removed without history.
func (that *roomService) LeaveMatch(ctx context.Context, id, participantID string) (*entity.Match, error) {
	log := that.logger.With("method", "LeaveMatch", "matchID", id, "participantID", participantID)

	unlock, err := that.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	match, err := that.getMatch(ctx, id)
	if err != nil {
		return nil, err
	}

	if match.IsFinished() {
		return match, nil
	}

	if match.Participant(participantID) == nil {
		return nil, fmt.Errorf("%w: %s", apperror.ErrParticipantNotFound, participantID)
	}

	now := that.now()

	if match.IsWaiting() {
		if err = that.matchRepo.DeleteByID(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to delete match: %w", err)
		}

		match.Finish(entity.EmptyCell, entity.EndReasonAbandoned, now)
		log.Info("host left waiting match")

		return match, nil
	}

	opponent := match.Opponent(participantID)
	match.Finish(opponent.Mark, entity.EndReasonForfeit, now)

	if err = that.matchRepo.CreateOrUpdate(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	that.appendHistory(ctx, log, match)
	log.Info("participant forfeited match", "winner", match.Winner)

	return match, nil
}

func (that *roomService) GetMatch(ctx context.Context, id string) (*entity.Match, error) {
	return that.getMatch(ctx, id)
}

// Reap deletes finished matches past their retention and matches idle for longer than staleAfter.
func (that *roomService) Reap(ctx context.Context) (int, error) {
	log := that.logger.With("method", "Reap")

	matches, err := that.matchRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list matches: %w", err)
	}

	removed := 0
	for _, match := range matches {
		if !that.isReapable(match) {
			continue
		}

		ok, err := that.reapOne(ctx, match.ID)
		if err != nil {
			return removed, err
		}

		if ok {
			log.Debug("match removed", "matchID", match.ID, "status", match.Status)
			removed++
		}
	}

	return removed, nil
}

func (that *roomService) isReapable(match *entity.Match) bool {
	now := that.now()

	if match.IsFinished() {
		return now.Sub(match.UpdatedAt) >= that.finishedRetention
	}

	return match.IsStale(now, that.staleAfter)
}

// reapOne re-checks the match under its lock, since a writer may have touched it after List.
func (that *roomService) reapOne(ctx context.Context, id string) (bool, error) {
	unlock, err := that.locker.Lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	match, err := that.matchRepo.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to get match: %w", err)
	}

	if !that.isReapable(match) {
		return false, nil
	}

	err = that.matchRepo.DeleteByID(ctx, id)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to delete match: %w", err)
	}

	return true, nil
}

func (that *roomService) History(ctx context.Context, limit int) ([]*entity.HistoryRecord, error) {
	records, err := that.historyRepo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	return records, nil
}

// Watch polls the match every interval and hands each snapshot to deliver.
func (that *roomService) Watch(
	ctx context.Context,
	id string,
	interval time.Duration,
	deliver func(*entity.Match) bool,
	onError func(error) bool,
) *poll.Subscription {
	return poll.Subscribe(ctx, interval, func(ctx context.Context) (*entity.Match, error) {
		return that.getMatch(ctx, id)
	}, deliver, onError)
}

func (that *roomService) getMatch(ctx context.Context, id string) (*entity.Match, error) {
	match, err := that.matchRepo.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrMatchNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	return match, nil
}

// appendHistory records the finished match. The match itself is already stored, so a failure is only logged.
func (that *roomService) appendHistory(ctx context.Context, log *slog.Logger, match *entity.Match) {
	id, err := pkg.GenerateRecordID()
	if err != nil {
		log.Error("failed to generate history id", "error", err)
		return
	}

	if err = that.historyRepo.Append(ctx, entity.NewHistoryRecord(id, match)); err != nil {
		log.Error("failed to append history record", "error", err)
	}
}
