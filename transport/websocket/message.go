package websocket

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

const (
	actionMatch  = "match"
	actionClosed = "closed"
	actionError  = "error"
)

// Message is one push to a watching client.
type Message struct {
	Action string        `json:"action"`
	Match  *entity.Match `json:"match,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func (that *Server) sendMessage(conn *websocket.Conn, message Message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(that.writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}
