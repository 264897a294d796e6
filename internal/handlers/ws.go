package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/oddsdesk/oddsdesk/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS middleware ahead of the upgrade
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeSignals upgrades the connection and subscribes it to the signal feed.
// Query params: sport (optional, empty subscribes to all sports).
func (h *Handler) ServeSignals(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error reply
		fmt.Printf("[ws] upgrade failed: %v\n", err)
		return
	}

	client := hub.NewClient(conn, r.URL.Query().Get("sport"))
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.hub)
}
