package usecase

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
	defaultThinkTime    = 500 * time.Millisecond
	defaultPollInterval = time.Second
)

type SessionController interface {
	StartAISession(ctx context.Context, user entity.User, difficulty entity.Difficulty) (*Session, error)
	HostRoom(ctx context.Context, user entity.User) (*Session, error)
	JoinRoom(ctx context.Context, user entity.User, roomID string) (*Session, error)

	SubmitHumanMove(ctx context.Context, session *Session, index int) error
	Refresh(ctx context.Context, session *Session) error
	Sync(ctx context.Context, session *Session, match *entity.Match)
	Watch(ctx context.Context, session *Session) error
	LeaveRoom(ctx context.Context, session *Session) error
	ResetSession(ctx context.Context, session *Session) error
}

type botService interface {
	SelectMove(board entity.Board, difficulty entity.Difficulty, botMark entity.Mark) (int, error)
}

type roomService interface {
	CreateMatch(ctx context.Context, host entity.User) (*entity.Match, error)
	JoinMatch(ctx context.Context, id string, joiner entity.User) (*entity.Match, error)
	SubmitMove(ctx context.Context, id string, cell int, participantID string) (*entity.Match, bool, error)
	LeaveMatch(ctx context.Context, id, participantID string) (*entity.Match, error)
	GetMatch(ctx context.Context, id string) (*entity.Match, error)
	Watch(ctx context.Context, id string, interval time.Duration, deliver func(*entity.Match) bool, onError func(error) bool) *poll.Subscription
}

type resultRecorder interface {
	RecordGameResult(ctx context.Context, userID, outcome string, scoreDelta int, mode string) error
}

type SessionOption func(*sessionController)

// WithThinkTime sets the pause before the bot answers.
func WithThinkTime(thinkTime time.Duration) SessionOption {
	return func(that *sessionController) {
		that.thinkTime = thinkTime
	}
}

// WithPollInterval sets how often room sessions poll their match.
func WithPollInterval(interval time.Duration) SessionOption {
	return func(that *sessionController) {
		that.pollInterval = interval
	}
}

type sessionController struct {
	logger *slog.Logger

	bot      botService
	rooms    roomService
	recorder resultRecorder

	thinkTime    time.Duration
	pollInterval time.Duration
}

func NewSessionController(logger *slog.Logger, bot botService, rooms roomService, recorder resultRecorder, opts ...SessionOption) SessionController {
	controller := &sessionController{
		logger:       logger.With("component", "session"),
		bot:          bot,
		rooms:        rooms,
		recorder:     recorder,
		thinkTime:    defaultThinkTime,
		pollInterval: defaultPollInterval,
	}

	for _, opt := range opts {
		opt(controller)
	}

	return controller
}

// pendingResult is a finished game waiting to be handed to the recorder outside the session lock.
type pendingResult struct {
	userID     string
	outcome    string
	scoreDelta int
	mode       string
}

func (that *sessionController) StartAISession(_ context.Context, user entity.User, difficulty entity.Difficulty) (*Session, error) {
	difficulty, err := entity.ParseDifficulty(string(difficulty))
	if err != nil {
		return nil, err
	}

	session := &Session{
		id:         pkg.GenerateNewSessionID(),
		user:       user,
		mode:       ModeAI,
		difficulty: difficulty,
		humanMark:  entity.MarkX,
		turn:       entity.MarkX,
	}

	that.logger.Info("ai session started", "sessionID", session.id, "userID", user.ID, "difficulty", difficulty)

	return session, nil
}

func (that *sessionController) HostRoom(ctx context.Context, user entity.User) (*Session, error) {
	match, err := that.rooms.CreateMatch(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return that.roomSession(ctx, user, match, entity.MarkX), nil
}

func (that *sessionController) JoinRoom(ctx context.Context, user entity.User, roomID string) (*Session, error) {
	match, err := that.rooms.JoinMatch(ctx, roomID, user)
	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	return that.roomSession(ctx, user, match, entity.MarkO), nil
}

func (that *sessionController) roomSession(ctx context.Context, user entity.User, match *entity.Match, mark entity.Mark) *Session {
	session := &Session{
		id:        pkg.GenerateNewSessionID(),
		user:      user,
		mode:      ModeRoom,
		humanMark: mark,
		matchID:   match.ID,
	}

	for _, participant := range match.Participants {
		if participant.Mark == mark {
			session.participantID = participant.ID
		}
	}

	that.Sync(ctx, session, match)

	that.logger.Info("room session started", "sessionID", session.id, "userID", user.ID, "matchID", match.ID, "mark", mark)

	return session
}

func (that *sessionController) SubmitHumanMove(ctx context.Context, session *Session, index int) error {
	if session.mode == ModeRoom {
		return that.submitRoomMove(ctx, session, index)
	}

	return that.submitAIMove(ctx, session, index)
}

func (that *sessionController) submitAIMove(ctx context.Context, session *Session, index int) error {
	log := that.logger.With("method", "submitAIMove", "sessionID", session.id)

	session.mu.Lock()

	if session.finalized || session.turn != session.humanMark {
		session.mu.Unlock()
		return fmt.Errorf("%w: waiting for the opponent or game over", apperror.ErrIllegalMove)
	}

	board, err := session.board.ApplyMove(index, session.humanMark)
	if err != nil {
		session.mu.Unlock()
		return err
	}

	session.board = board
	if pending := that.advanceLocked(session); pending != nil {
		session.mu.Unlock()
		that.record(ctx, pending)
		return nil
	}

	botMark := session.humanMark.Opponent()
	session.turn = botMark
	generation := session.generation
	session.mu.Unlock()

	// the bot still answers when ctx ends early so the session never stalls on its turn
	that.think(ctx)

	session.mu.Lock()

	if session.generation != generation {
		session.mu.Unlock()
		log.Debug("session was reset while the bot was thinking")
		return nil
	}

	cell, err := that.bot.SelectMove(session.board, session.difficulty, botMark)
	if err != nil {
		session.turn = session.humanMark
		session.mu.Unlock()
		return fmt.Errorf("failed to select bot move: %w", err)
	}

	board, err = session.board.ApplyMove(cell, botMark)
	if err != nil {
		session.turn = session.humanMark
		session.mu.Unlock()
		return fmt.Errorf("bot produced a bad move: %w", err)
	}

	session.board = board
	pending := that.advanceLocked(session)
	if pending == nil {
		session.turn = session.humanMark
	}
	session.mu.Unlock()

	that.record(ctx, pending)

	return nil
}

// advanceLocked evaluates the board and finalizes the session when the game is over.
func (that *sessionController) advanceLocked(session *Session) *pendingResult {
	session.outcome = entity.Evaluate(session.board)
	if !session.outcome.IsTerminal() {
		return nil
	}

	session.turn = entity.EmptyCell

	return that.finalizeLocked(session, session.outcome)
}

// finalizeLocked marks the session finished and returns the result to record, at most once per session.
func (that *sessionController) finalizeLocked(session *Session, outcome entity.Outcome) *pendingResult {
	if session.finalized {
		return nil
	}

	session.finalized = true
	session.outcome = outcome
	session.result, session.scoreDelta = entity.ResultFor(outcome, session.humanMark)

	return &pendingResult{
		userID:     session.user.ID,
		outcome:    session.result,
		scoreDelta: session.scoreDelta,
		mode:       session.resultMode(),
	}
}

func (that *sessionController) think(ctx context.Context) {
	if that.thinkTime <= 0 {
		return
	}

	timer := time.NewTimer(that.thinkTime)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// record hands the result to the recorder. Failures are logged and dropped.
func (that *sessionController) record(ctx context.Context, pending *pendingResult) {
	if pending == nil {
		return
	}

	log := that.logger.With("method", "record", "userID", pending.userID)

	err := that.recorder.RecordGameResult(context.WithoutCancel(ctx), pending.userID, pending.outcome, pending.scoreDelta, pending.mode)
	if err != nil {
		log.Error("failed to record game result", "error", err)
		return
	}

	log.Info("game result recorded", "outcome", pending.outcome, "mode", pending.mode)
}

func (that *sessionController) submitRoomMove(ctx context.Context, session *Session, index int) error {
	session.mu.Lock()

	if session.finalized || session.left {
		session.mu.Unlock()
		return fmt.Errorf("%w: game over", apperror.ErrIllegalMove)
	}

	match, accepted, err := that.rooms.SubmitMove(ctx, session.matchID, index, session.participantID)
	if err != nil {
		session.mu.Unlock()
		return fmt.Errorf("failed to submit move: %w", err)
	}

	pending := that.syncLocked(session, match)
	session.mu.Unlock()

	that.record(ctx, pending)

	if !accepted {
		return fmt.Errorf("%w: cell %d", apperror.ErrIllegalMove, index)
	}

	return nil
}

// Refresh pulls the current match once and applies it.
func (that *sessionController) Refresh(ctx context.Context, session *Session) error {
	if session.mode != ModeRoom || session.IsFinished() {
		return nil
	}

	match, err := that.rooms.GetMatch(ctx, session.matchID)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		that.abandon(session)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to get match: %w", err)
	}

	that.Sync(ctx, session, match)

	return nil
}

// Sync applies a room snapshot to the session and finalizes it once the match is over.
func (that *sessionController) Sync(ctx context.Context, session *Session, match *entity.Match) {
	session.mu.Lock()
	pending := that.syncLocked(session, match)
	session.mu.Unlock()

	that.record(ctx, pending)
}

func (that *sessionController) syncLocked(session *Session, match *entity.Match) *pendingResult {
	if match == nil || match.ID != session.matchID {
		return nil
	}

	session.match = match
	session.board = match.Board
	session.turn = match.Turn

	if !match.IsFinished() {
		session.outcome = entity.Outcome{Kind: entity.InProgress}
		return nil
	}

	// a waiting room closed by its host never had a game to score
	if match.EndReason == entity.EndReasonAbandoned {
		session.finalized = true
		return nil
	}

	return that.finalizeLocked(session, match.Outcome())
}

// abandon closes a room session whose match is gone without scoring it.
func (that *sessionController) abandon(session *Session) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.finalized {
		return
	}

	session.finalized = true
	session.turn = entity.EmptyCell

	that.logger.Warn("match disappeared, session closed", "sessionID", session.id, "matchID", session.matchID)
}

// Watch starts polling the session's match until it finishes, the session leaves or ctx ends.
func (that *sessionController) Watch(ctx context.Context, session *Session) error {
	if session.mode != ModeRoom {
		return fmt.Errorf("%w: only room sessions can be watched", apperror.ErrIllegalMove)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.watch != nil || session.finalized || session.left {
		return nil
	}

	log := that.logger.With("method", "Watch", "sessionID", session.id, "matchID", session.matchID)

	session.watch = that.rooms.Watch(ctx, session.matchID, that.pollInterval,
		func(match *entity.Match) bool {
			that.Sync(ctx, session, match)
			return !match.IsFinished()
		},
		func(err error) bool {
			if errors.Is(err, apperror.ErrMatchNotFound) {
				that.abandon(session)
				return false
			}

			log.Warn("failed to poll match", "error", err)

			return true
		},
	)

	return nil
}

// LeaveRoom stops polling and leaves the match. Leaving an active match is recorded as a loss.
func (that *sessionController) LeaveRoom(ctx context.Context, session *Session) error {
	if session.mode != ModeRoom {
		return fmt.Errorf("%w: not a room session", apperror.ErrIllegalMove)
	}

	session.stopWatch()

	session.mu.Lock()

	if session.left {
		session.mu.Unlock()
		return nil
	}

	match, err := that.rooms.LeaveMatch(ctx, session.matchID, session.participantID)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		session.left = true
		session.finalized = true
		session.mu.Unlock()
		return nil
	}

	if err != nil {
		session.mu.Unlock()
		return fmt.Errorf("failed to leave match: %w", err)
	}

	session.left = true
	pending := that.syncLocked(session, match)
	session.mu.Unlock()

	that.record(ctx, pending)

	that.logger.Info("left room", "sessionID", session.id, "matchID", session.matchID, "endReason", match.EndReason)

	return nil
}

// ResetSession starts a fresh game in an AI session. Room sessions can't be reset.
func (that *sessionController) ResetSession(_ context.Context, session *Session) error {
	if session.mode == ModeRoom {
		return apperror.ErrResetNotSupported
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	session.board = entity.Board{}
	session.turn = session.humanMark
	session.outcome = entity.Outcome{Kind: entity.InProgress}
	session.finalized = false
	session.result = ""
	session.scoreDelta = 0
	session.generation++

	return nil
}
