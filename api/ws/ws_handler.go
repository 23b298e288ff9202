package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/service"
)

type Handler struct {
	Service *service.Service
	Hub     *Hub
}

func NewHandler(svc *service.Service, hub *Hub) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
	}
}

func (h *Handler) NewWsUpgrader(requiredOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == requiredOrigin
		},
		Subprotocols: []string{"chatdrop-v1"},
	}
}

// credentialsOf extracts the websocket token from the request. Browsers
// cannot set custom headers on the upgrade, so web clients carry the token
// in the wat cookie; mobile clients pass it as the second entry of the
// Sec-WebSocket-Protocol header.
func credentialsOf(r *http.Request) (string, models.Platform, bool) {
	if c, err := r.Cookie("wat"); err == nil && c.Value != "" {
		return c.Value, models.PlatformWeb, true
	}

	protocols := strings.Split(r.Header.Get("Sec-WebSocket-Protocol"), ",")
	if len(protocols) == 2 {
		return strings.TrimSpace(protocols[1]), models.PlatformMobile, true
	}
	return "", models.PlatformMobile, false
}

// ServeWS handles websocket requests from the peer.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	wsToken, platform, ok := credentialsOf(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	uid, authErr := h.Service.AuthenticateWebsocket(r.Context(), platform, wsToken)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	// Must upgrade the connection in order to be able to send custom close message
	if authErr != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Unauthenticated"),
		)
		conn.Close()
		return
	}

	client := NewClient(h.Hub, conn, uid, h.HandleWsMessage)
	h.Hub.OpenCh <- client

	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

// Websocket message structs
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ackMessage struct {
	Type string `json:"type"`
}

// HandleWsMessage processes inbound frames. The notify socket is
// receive-mostly; clients only send keepalive pings.
func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		log.Printf("Failed to unmarshal ws message from account %s: %v", client.uid, err)
		return
	}

	switch msg.Type {
	case "ping":
		if pong, err := json.Marshal(ackMessage{Type: "pong"}); err == nil {
			client.Send <- pong
		}
	default:
		log.Printf("Unknown ws message type %q from account %s", msg.Type, client.uid)
	}
}
