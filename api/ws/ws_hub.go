package ws

import (
	"context"
	"log"

	"github.com/nitish987/chatdrop/cache"
)

// Hub maintains the set of active clients and relays per-account notify
// messages from the cache pubsub to every socket that account holds open.
// The client maps are owned by the Run goroutine; pubsub deliveries cross
// over through notifyCh instead of touching them directly.
type Hub struct {
	sessionCache     cache.SessionCache
	OpenCh           chan *Client
	CloseCh          chan *Client
	AccountDeletedCh chan string
	notifyCh         chan notifyDelivery
	uidToClients     map[string]map[*Client]struct{}
	uidToRelayCancel map[string]context.CancelFunc
}

type notifyDelivery struct {
	uid     string
	payload []byte
}

func NewHub(sessionCache cache.SessionCache) *Hub {
	return &Hub{
		sessionCache:     sessionCache,
		OpenCh:           make(chan *Client, 256),
		CloseCh:          make(chan *Client, 256),
		AccountDeletedCh: make(chan string, 64),
		notifyCh:         make(chan notifyDelivery, 256),
		uidToClients:     make(map[string]map[*Client]struct{}),
		uidToRelayCancel: make(map[string]context.CancelFunc),
	}
}

const maxConnectionsPerAccount = 3

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.OpenCh:
			if _, ok := h.uidToClients[client.uid]; !ok {
				ctx, cancel := context.WithCancel(context.Background())
				uid := client.uid

				// The handler runs on the pubsub delivery goroutine; hand
				// the payload to Run rather than reading the client map here
				err := h.sessionCache.Subscribe(ctx, cache.NotifyChannel(uid), func(messageBytes []byte) {
					h.notifyCh <- notifyDelivery{uid: uid, payload: messageBytes}
				})
				if err != nil {
					log.Printf("Failed to create relay for account %s: %v", uid, err)
					cancel()
					close(client.Send)
					continue
				}

				h.uidToClients[uid] = make(map[*Client]struct{})
				h.uidToRelayCancel[uid] = cancel
			}

			if len(h.uidToClients[client.uid]) >= maxConnectionsPerAccount {
				log.Printf("Account %s reached max connections (%d)", client.uid, maxConnectionsPerAccount)
				close(client.Send)
				continue
			}

			h.uidToClients[client.uid][client] = struct{}{}

		case delivery := <-h.notifyCh:
			for client := range h.uidToClients[delivery.uid] {
				client.Send <- delivery.payload
			}

		case client := <-h.CloseCh:
			delete(h.uidToClients[client.uid], client)
			if len(h.uidToClients[client.uid]) == 0 {
				if cancel, ok := h.uidToRelayCancel[client.uid]; ok {
					cancel()
					delete(h.uidToRelayCancel, client.uid)
				}
				delete(h.uidToClients, client.uid)
			}

		case uid := <-h.AccountDeletedCh:
			if clients, ok := h.uidToClients[uid]; ok {
				for client := range clients {
					close(client.Send)
					delete(h.uidToClients[uid], client)
				}
				if cancel, ok := h.uidToRelayCancel[uid]; ok {
					cancel()
					delete(h.uidToRelayCancel, uid)
				}
				delete(h.uidToClients, uid)
			}
		}
	}
}
