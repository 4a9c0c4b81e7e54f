package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the connection and subscribes the client to a
// tree's recompute pushes until it disconnects.
func HandleWebSocket(c echo.Context, hub *Hub, treeID, userID string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		TreeID: treeID,
		UserID: userID,
		Conn:   conn,
	}

	hub.register <- client

	conn.WriteJSON(Update{
		Type:   "connected",
		TreeID: treeID,
	})

	// The canvas only listens; reads exist to detect disconnection.
	go func() {
		defer func() {
			hub.unregister <- client
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	return nil
}
