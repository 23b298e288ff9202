package ws

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nitish987/chatdrop/cache"
	cachemocks "github.com/nitish987/chatdrop/cache/mocks"
)

// publishUntilReceived works around the asynchronous registration of a
// freshly opened client: the hub processes OpenCh on its own goroutine, so
// the first publishes may race ahead of the subscription.
func publishUntilReceived(t *testing.T, memCache *cachemocks.MemoryCache, uid string, payload []byte, client *Client) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		memCache.Publish(context.Background(), cache.NotifyChannel(uid), payload)
		select {
		case got := <-client.Send:
			assert.Equal(t, payload, got)
			return
		case <-deadline:
			t.Fatal("client never received the published payload")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHub_RelaysNotifyToEverySocket(t *testing.T) {
	memCache := cachemocks.NewMemoryCache()
	hub := NewHub(memCache)
	go hub.Run()

	first := NewClient(hub, nil, "uid-1", nil)
	second := NewClient(hub, nil, "uid-1", nil)
	other := NewClient(hub, nil, "uid-2", nil)
	hub.OpenCh <- first
	hub.OpenCh <- second
	hub.OpenCh <- other

	publishUntilReceived(t, memCache, "uid-1", []byte(`{"event":"notify"}`), first)

	// Second socket of the same account sees the same stream
	select {
	case got := <-second.Send:
		assert.Equal(t, []byte(`{"event":"notify"}`), got)
	case <-time.After(2 * time.Second):
		t.Fatal("second socket never received the payload")
	}

	// The other account's socket stays quiet
	select {
	case got := <-other.Send:
		t.Fatalf("unrelated account received %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ConcurrentChurnAndDelivery(t *testing.T) {
	memCache := cachemocks.NewMemoryCache()
	hub := NewHub(memCache)
	go hub.Run()

	anchor := NewClient(hub, nil, "uid-1", nil)
	hub.OpenCh <- anchor
	publishUntilReceived(t, memCache, "uid-1", []byte("warmup"), anchor)

	// Deliveries land while clients of the same account come and go; run
	// under -race this flushes out unsynchronized map access in the relay.
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		// Stay under the client send buffer so a laggard churn client can
		// never block the relay
		for i := 0; i < 100; i++ {
			memCache.Publish(context.Background(), cache.NotifyChannel("uid-1"), []byte(fmt.Sprintf("n-%d", i)))
		}
		close(stop)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			churn := NewClient(hub, nil, "uid-1", nil)
			hub.OpenCh <- churn
			hub.CloseCh <- churn
		}
	}()

	// Drain the anchor so relay sends never block on its buffer
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			select {
			case <-anchor.Send:
			case <-stop:
				return
			}
		}
	}()

	wg.Wait()
	<-drained
}

func TestHub_CapsConnectionsPerAccount(t *testing.T) {
	memCache := cachemocks.NewMemoryCache()
	hub := NewHub(memCache)
	go hub.Run()

	clients := make([]*Client, 0, maxConnectionsPerAccount+1)
	for i := 0; i <= maxConnectionsPerAccount; i++ {
		client := NewClient(hub, nil, "uid-1", nil)
		clients = append(clients, client)
		hub.OpenCh <- client
	}

	// Hub closes Send of the connection past the cap
	overflow := clients[maxConnectionsPerAccount]
	select {
	case _, open := <-overflow.Send:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("overflow connection was not rejected")
	}
}
