package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/usecase"
)

const (
	defaultHistoryLimit = 20
	defaultGamesLimit   = 50
)

type sessionController interface {
	StartAISession(ctx context.Context, user entity.User, difficulty entity.Difficulty) (*usecase.Session, error)
	HostRoom(ctx context.Context, user entity.User) (*usecase.Session, error)
	JoinRoom(ctx context.Context, user entity.User, roomID string) (*usecase.Session, error)
	SubmitHumanMove(ctx context.Context, session *usecase.Session, index int) error
	Refresh(ctx context.Context, session *usecase.Session) error
	Watch(ctx context.Context, session *usecase.Session) error
	LeaveRoom(ctx context.Context, session *usecase.Session) error
	ResetSession(ctx context.Context, session *usecase.Session) error
}

type sessionRegistry interface {
	Add(session *usecase.Session)
	Get(id, userID string) (*usecase.Session, error)
	Remove(id string)
}

type roomReader interface {
	GetMatch(ctx context.Context, id string) (*entity.Match, error)
	History(ctx context.Context, limit int) ([]*entity.HistoryRecord, error)
}

type statsReader interface {
	GetStats(ctx context.Context, userID string) (*entity.UserStats, error)
	ListResults(ctx context.Context, userID string, limit int) ([]*entity.GameResult, error)
}

type handlers struct {
	logger *slog.Logger

	// watchCtx bounds the room watchers, which outlive the request that started them
	watchCtx context.Context

	sessions sessionController
	registry sessionRegistry
	rooms    roomReader
	stats    statsReader
}

type startAIRequest struct {
	Difficulty entity.Difficulty `json:"difficulty"`
}

type roomRequest struct {
	RoomID string `json:"room_id"`
}

type moveRequest struct {
	Cell *int `json:"cell"`
}

func decode(r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}

	return json.NewDecoder(r.Body).Decode(dst)
}

func (that *handlers) fail(w http.ResponseWriter, r *http.Request, method string, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		that.logger.Error("request failed", "method", method, "requestID", RequestIDFrom(r.Context()), "error", err)
	}

	writeError(w, err)
}

func (that *handlers) StartAISession(w http.ResponseWriter, r *http.Request) {
	var req startAIRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := that.sessions.StartAISession(r.Context(), userFrom(r.Context()), req.Difficulty)
	if err != nil {
		that.fail(w, r, "StartAISession", err)
		return
	}

	that.registry.Add(session)

	writeJSON(w, http.StatusCreated, session.View())
}

// StartRoomSession hosts a new room, or joins room_id when it is set.
func (that *handlers) StartRoomSession(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	user := userFrom(ctx)

	var (
		session *usecase.Session
		err     error
	)

	if req.RoomID == "" {
		session, err = that.sessions.HostRoom(ctx, user)
	} else {
		session, err = that.sessions.JoinRoom(ctx, user, req.RoomID)
	}

	if err != nil {
		that.fail(w, r, "StartRoomSession", err)
		return
	}

	if err = that.sessions.Watch(that.watchCtx, session); err != nil {
		that.fail(w, r, "StartRoomSession", err)
		return
	}

	that.registry.Add(session)

	writeJSON(w, http.StatusCreated, session.View())
}

func (that *handlers) session(r *http.Request) (*usecase.Session, error) {
	return that.registry.Get(chi.URLParam(r, "id"), userFrom(r.Context()).ID)
}

func (that *handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := that.session(r)
	if err != nil {
		that.fail(w, r, "GetSession", err)
		return
	}

	if err = that.sessions.Refresh(r.Context(), session); err != nil {
		that.fail(w, r, "GetSession", err)
		return
	}

	writeJSON(w, http.StatusOK, session.View())
}

func (that *handlers) SubmitMove(w http.ResponseWriter, r *http.Request) {
	session, err := that.session(r)
	if err != nil {
		that.fail(w, r, "SubmitMove", err)
		return
	}

	var req moveRequest
	if err = decode(r, &req); err != nil || req.Cell == nil {
		writeMessage(w, http.StatusBadRequest, "cell is required")
		return
	}

	if err = that.sessions.SubmitHumanMove(r.Context(), session, *req.Cell); err != nil {
		that.fail(w, r, "SubmitMove", err)
		return
	}

	writeJSON(w, http.StatusOK, session.View())
}

func (that *handlers) ResetSession(w http.ResponseWriter, r *http.Request) {
	session, err := that.session(r)
	if err != nil {
		that.fail(w, r, "ResetSession", err)
		return
	}

	if err = that.sessions.ResetSession(r.Context(), session); err != nil {
		that.fail(w, r, "ResetSession", err)
		return
	}

	writeJSON(w, http.StatusOK, session.View())
}

// LeaveSession forfeits a room session and forgets the session. AI sessions are just dropped.
func (that *handlers) LeaveSession(w http.ResponseWriter, r *http.Request) {
	session, err := that.session(r)
	if err != nil {
		that.fail(w, r, "LeaveSession", err)
		return
	}

	if session.Mode() == usecase.ModeRoom {
		if err = that.sessions.LeaveRoom(r.Context(), session); err != nil {
			that.fail(w, r, "LeaveSession", err)
			return
		}
	}

	that.registry.Remove(session.ID())

	writeJSON(w, http.StatusOK, session.View())
}

// GetRoom returns the match loaded by roomMember.
func (that *handlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, matchFrom(r.Context()))
}

// parseLimit reads the limit query parameter. It writes a 400 and returns false when it is malformed.
func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		writeMessage(w, http.StatusBadRequest, "limit must be a positive number")
		return 0, false
	}

	return limit, true
}

func (that *handlers) History(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultHistoryLimit)
	if !ok {
		return
	}

	records, err := that.rooms.History(r.Context(), limit)
	if err != nil {
		that.fail(w, r, "History", err)
		return
	}

	if records == nil {
		records = []*entity.HistoryRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

func (that *handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := that.stats.GetStats(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		that.fail(w, r, "GetStats", err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ListGames returns the user's most recent results, newest first.
func (that *handlers) ListGames(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultGamesLimit)
	if !ok {
		return
	}

	games, err := that.stats.ListResults(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		that.fail(w, r, "ListGames", err)
		return
	}

	if games == nil {
		games = []*entity.GameResult{}
	}

	writeJSON(w, http.StatusOK, games)
}
