package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/leappulse/pulse/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// streamClient pushes every snapshot change to one browser
type streamClient struct {
	conn    *websocket.Conn
	updates <-chan models.Snapshot
	done    chan struct{}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("Failed to upgrade stream connection: %v", err)
		return
	}

	updates, stop := s.controller.Watch()
	defer stop()

	client := &streamClient{
		conn:    conn,
		updates: updates,
		done:    make(chan struct{}),
	}
	logrus.Debugf("Stream client connected from %s", r.RemoteAddr)

	go client.readPump()
	client.writePump()

	logrus.Debugf("Stream client %s disconnected", r.RemoteAddr)
}

// readPump discards client messages and detects disconnects
func (c *streamClient) readPump() {
	defer close(c.done)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Warnf("Stream read error: %v", err)
			}
			return
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case snap, ok := <-c.updates:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The controller shut down
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(NewSnapshotView(snap)); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
