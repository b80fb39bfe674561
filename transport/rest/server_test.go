package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/repository/memory"
	"github.com/rocketscienceinc/tictactoe-arena/internal/service"
	"github.com/rocketscienceinc/tictactoe-arena/internal/usecase"
)

type fakeResults struct {
	mu      sync.Mutex
	results []entity.GameResult
}

func (that *fakeResults) RecordGameResult(_ context.Context, userID, outcome string, scoreDelta int, mode string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.results = append(that.results, entity.GameResult{
		ID:         strconv.Itoa(len(that.results) + 1),
		UserID:     userID,
		Outcome:    outcome,
		ScoreDelta: scoreDelta,
		Mode:       mode,
	})

	return nil
}

func (that *fakeResults) GetStats(_ context.Context, userID string) (*entity.UserStats, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	stats := &entity.UserStats{UserID: userID}
	for _, result := range that.results {
		if result.UserID != userID {
			continue
		}
		stats.GamesPlayed++
		stats.Score += result.ScoreDelta
	}

	return stats, nil
}

func (that *fakeResults) ListResults(_ context.Context, userID string, limit int) ([]*entity.GameResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	var games []*entity.GameResult
	for i := len(that.results) - 1; i >= 0 && len(games) < limit; i-- {
		if that.results[i].UserID == userID {
			result := that.results[i]
			games = append(games, &result)
		}
	}

	return games, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	router, _ := newTestAPI(t)

	return router
}

// newTestAPI returns the router together with the session registry behind it.
func newTestAPI(t *testing.T) (http.Handler, *usecase.SessionRegistry) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	results := &fakeResults{}

	rooms := service.NewRoomService(logger, memory.NewMatchRepository(), memory.NewHistoryRepository(), memory.NewLocker())
	bot := service.NewBotService(service.WithRandom(func(int) int { return 0 }))
	sessions := usecase.NewSessionController(logger, bot, rooms, results,
		usecase.WithThinkTime(0), usecase.WithPollInterval(10*time.Millisecond))

	registry := usecase.NewSessionRegistry()

	return NewRouter(ctx, logger, Deps{
		Sessions: sessions,
		Registry: registry,
		Rooms:    rooms,
		Stats:    results,
	}), registry
}

func doRequest(t *testing.T, handler http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(headerUserID, userID)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) usecase.SessionView {
	t.Helper()

	var view usecase.SessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))

	return view
}

func TestPing(t *testing.T) {
	router := newTestRouter(t)

	rr := doRequest(t, router, http.MethodGet, "/ping", "", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pong", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(headerRequestID))
}

func TestSessions_RequireUser(t *testing.T) {
	router := newTestRouter(t)

	rr := doRequest(t, router, http.MethodPost, "/sessions/ai", "", `{"difficulty":"easy"}`)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAISession(t *testing.T) {
	router := newTestRouter(t)

	// Given: a new easy game
	rr := doRequest(t, router, http.MethodPost, "/sessions/ai", "alice", `{"difficulty":"easy"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	view := decodeView(t, rr)
	assert.Equal(t, usecase.ModeAI, view.Mode)
	assert.Equal(t, entity.EasyDifficulty, view.Difficulty)

	sessionPath := "/sessions/" + view.ID

	t.Run("Move is applied and the bot answers", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodPost, sessionPath+"/moves", "alice", `{"cell":4}`)
		require.Equal(t, http.StatusOK, rr.Code)

		board := decodeView(t, rr).Board
		assert.Equal(t, entity.MarkX, board[4])
		assert.Equal(t, 2, board.Count(entity.MarkX)+board.Count(entity.MarkO))
	})

	t.Run("Occupied cell", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodPost, sessionPath+"/moves", "alice", `{"cell":4}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Missing cell", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodPost, sessionPath+"/moves", "alice", `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Other users can't see the session", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodGet, sessionPath, "bob", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Reset", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodPost, sessionPath+"/reset", "alice", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, entity.Board{}, decodeView(t, rr).Board)
	})

	t.Run("Unknown difficulty", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodPost, "/sessions/ai", "alice", `{"difficulty":"impossible"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRoomSession(t *testing.T) {
	router := newTestRouter(t)

	// Given: alice hosts a room and bob joins it
	rr := doRequest(t, router, http.MethodPost, "/sessions/rooms", "alice", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	host := decodeView(t, rr)
	require.NotEmpty(t, host.MatchID)
	assert.Equal(t, entity.StatusWaiting, host.MatchStatus)

	rr = doRequest(t, router, http.MethodPost, "/sessions/rooms", "bob", `{"room_id":"`+host.MatchID+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	guest := decodeView(t, rr)
	assert.Equal(t, entity.MarkO, guest.HumanMark)

	t.Run("Room is visible to its players", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodGet, "/rooms/"+host.MatchID, "bob", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var match entity.Match
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &match))
		assert.Equal(t, entity.StatusActive, match.Status)
		assert.Len(t, match.Participants, 2)
		assert.True(t, match.HasUser("alice"))
	})

	t.Run("Room is hidden from everyone else", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodGet, "/rooms/"+host.MatchID, "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		rr = doRequest(t, router, http.MethodGet, "/rooms/"+host.MatchID, "carol", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Room is full", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodPost, "/sessions/rooms", "carol", `{"room_id":"`+host.MatchID+`"}`)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("Out of turn", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodPost, "/sessions/"+guest.ID+"/moves", "bob", `{"cell":0}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Reset isn't supported", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodPost, "/sessions/"+host.ID+"/reset", "alice", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Leaving forfeits the match", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodPost, "/sessions/"+guest.ID+"/leave", "bob", "")
		require.Equal(t, http.StatusOK, rr.Code)

		view := decodeView(t, rr)
		assert.True(t, view.Finished)
		assert.Equal(t, entity.ResultLoss, view.Result)

		rr = doRequest(t, router, http.MethodGet, "/sessions/"+guest.ID, "bob", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Host sees the win", func(t *testing.T) {
		require.Eventually(t, func() bool {
			rr = doRequest(t, router, http.MethodGet, "/sessions/"+host.ID, "alice", "")
			return rr.Code == http.StatusOK && decodeView(t, rr).Finished
		}, time.Second, 10*time.Millisecond)

		assert.Equal(t, entity.ResultWin, decodeView(t, rr).Result)
	})

	t.Run("History lists the match", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodGet, "/rooms/history?limit=5", "", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var records []entity.HistoryRecord
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
		require.Len(t, records, 1)
		assert.Equal(t, host.MatchID, records[0].MatchID)
	})

	t.Run("Stats include both players", func(t *testing.T) {
		var stats entity.UserStats
		require.Eventually(t, func() bool {
			rr = doRequest(t, router, http.MethodGet, "/stats/alice", "", "")
			return rr.Code == http.StatusOK && json.Unmarshal(rr.Body.Bytes(), &stats) == nil && stats.GamesPlayed == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, 1, stats.Score)

		rr = doRequest(t, router, http.MethodGet, "/stats/bob", "", "")
		require.Equal(t, http.StatusOK, rr.Code)
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
		assert.Equal(t, -1, stats.Score)
	})

	t.Run("Games list the results", func(t *testing.T) {
		rr = doRequest(t, router, http.MethodGet, "/stats/bob/games", "", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var games []entity.GameResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &games))
		require.Len(t, games, 1)
		assert.Equal(t, entity.ResultLoss, games[0].Outcome)
		assert.Equal(t, entity.ModeRoom, games[0].Mode)
	})
}

func TestRooms_Errors(t *testing.T) {
	router := newTestRouter(t)

	rr := doRequest(t, router, http.MethodGet, "/rooms/4242", "alice", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/rooms/history?limit=zero", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, router, http.MethodPost, "/sessions/rooms", "bob", `{"room_id":"4242"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAISession_LeaveDropsTheSession(t *testing.T) {
	router, registry := newTestAPI(t)

	for range 20 {
		// Given: a new game
		rr := doRequest(t, router, http.MethodPost, "/sessions/ai", "alice", `{"difficulty":"easy"}`)
		require.Equal(t, http.StatusCreated, rr.Code)
		view := decodeView(t, rr)

		// When: the player leaves it
		rr = doRequest(t, router, http.MethodPost, "/sessions/"+view.ID+"/leave", "alice", "")

		// Then: the session is forgotten
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, view.ID, decodeView(t, rr).ID)

		rr = doRequest(t, router, http.MethodGet, "/sessions/"+view.ID, "alice", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}

	assert.Equal(t, 0, registry.Len())
}

func TestStats_Games(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := &fakeResults{}
	for i := range 60 {
		require.NoError(t, results.RecordGameResult(ctx, "alice", entity.ResultWin, 1, strconv.Itoa(i)))
	}
	require.NoError(t, results.RecordGameResult(ctx, "bob", entity.ResultLoss, -1, "easy"))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(ctx, logger, Deps{Stats: results})

	t.Run("Defaults to the latest fifty", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/stats/alice/games", "", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var games []entity.GameResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &games))
		require.Len(t, games, defaultGamesLimit)
		assert.Equal(t, "59", games[0].Mode)
	})

	t.Run("Honors the limit", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/stats/alice/games?limit=3", "", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var games []entity.GameResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &games))
		assert.Len(t, games, 3)
	})

	t.Run("Unknown user gets an empty list", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/stats/nobody/games", "", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("Bad limit", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, "/stats/alice/games?limit=-1", "", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCORS_DoesNotAllowCredentials(t *testing.T) {
	router := newTestRouter(t)

	// Given: a cross-origin preflight from an arbitrary site
	req := httptest.NewRequest(http.MethodOptions, "/sessions/ai", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	// When: it is served
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	// Then: any origin is allowed but never with credentials
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRoomWatch_OnlyParticipants(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rooms := service.NewRoomService(logger, memory.NewMatchRepository(), memory.NewHistoryRepository(), memory.NewLocker())

	watch := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router := NewRouter(ctx, logger, Deps{Rooms: rooms, Watch: watch})

	// Given: a room hosted by alice
	match, err := rooms.CreateMatch(ctx, entity.User{ID: "alice", Name: "Alice"})
	require.NoError(t, err)

	path := "/rooms/" + match.ID + "/watch"

	t.Run("Host can watch", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, path, "alice", "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Anonymous callers are rejected", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Other users can't tell the room exists", func(t *testing.T) {
		rr := doRequest(t, router, http.MethodGet, path, "carol", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
