package push

import (
	"context"
	"log"

	"github.com/nitish987/chatdrop/mq"
)

// Dispatcher sends push notifications (login alerts, account activity).
type Dispatcher interface {
	Dispatch(ctx context.Context, pushToken string, title string, body string) error
}

// QueueDispatcher enqueues pushes on the delivery queue for the worker.
type QueueDispatcher struct {
	queue mq.MessageQueue
}

func NewQueueDispatcher(queue mq.MessageQueue) *QueueDispatcher {
	return &QueueDispatcher{queue: queue}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, pushToken string, title string, body string) error {
	msg := mq.DeliveryMessage{
		Kind:      mq.DeliveryPush,
		Subject:   title,
		Body:      body,
		PushToken: pushToken,
	}
	encoded, err := msg.Encode()
	if err != nil {
		return err
	}
	return d.queue.Send(ctx, encoded)
}

// LogDispatcher logs pushes instead of delivering them. Used in dev mode
// and by the worker until a provider integration lands.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(ctx context.Context, pushToken string, title string, body string) error {
	if pushToken == "" {
		return nil
	}
	log.Printf("push [%s]: %s - %s", pushToken, title, body)
	return nil
}
