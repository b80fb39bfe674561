package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/poll"
)

const defaultWriteTimeout = 10 * time.Second

type roomWatcher interface {
	GetMatch(ctx context.Context, id string) (*entity.Match, error)
	Watch(ctx context.Context, id string, interval time.Duration, deliver func(*entity.Match) bool, onError func(error) bool) *poll.Subscription
}

// Server pushes match snapshots of one room to a websocket client until the match ends.
type Server struct {
	logger *slog.Logger
	rooms  roomWatcher

	interval     time.Duration
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

func New(logger *slog.Logger, rooms roomWatcher, interval time.Duration) *Server {
	return &Server{
		logger:       logger.With("component", "websocket"),
		rooms:        rooms,
		interval:     interval,
		writeTimeout: defaultWriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (that *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	log := that.logger.With("method", "ServeHTTP", "matchID", roomID)

	if _, err := that.rooms.GetMatch(r.Context(), roomID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperror.ErrMatchNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	log.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	// the client never sends anything useful; reading only detects that it went away
	go func() {
		defer cancel()
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	sub := that.rooms.Watch(ctx, roomID, that.interval,
		func(match *entity.Match) bool {
			if sendErr := that.sendMessage(conn, Message{Action: actionMatch, Match: match}); sendErr != nil {
				log.Debug("client is gone", "error", sendErr)
				return false
			}

			return !match.IsFinished()
		},
		func(watchErr error) bool {
			if errors.Is(watchErr, apperror.ErrMatchNotFound) {
				_ = that.sendMessage(conn, Message{Action: actionClosed})
				return false
			}

			log.Warn("failed to poll match", "error", watchErr)

			return that.sendMessage(conn, Message{Action: actionError, Error: "temporarily unavailable"}) == nil
		},
	)

	<-sub.Done()

	_ = conn.SetWriteDeadline(time.Now().Add(that.writeTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	log.Info("WebSocket connection closed")
}
