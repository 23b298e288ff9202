package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/nitish987/chatdrop/mailer"
	"github.com/nitish987/chatdrop/mq"
	"github.com/nitish987/chatdrop/push"
)

// DeliveryConsumer drains the delivery queue and hands mail to the SMTP
// mailer and pushes to the push dispatcher.
type DeliveryConsumer struct {
	deliveryQueue mq.MessageQueue
	mail          mailer.Mailer
	pusher        push.Dispatcher
}

func NewDeliveryConsumer(deliveryQueue mq.MessageQueue, mail mailer.Mailer, pusher push.Dispatcher) *DeliveryConsumer {
	return &DeliveryConsumer{
		deliveryQueue: deliveryQueue,
		mail:          mail,
		pusher:        pusher,
	}
}

// SMTP round trips are quick; 30s covers retries inside the send
const visibilityTimeout = 30

func (consumer DeliveryConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := consumer.deliveryQueue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("deliveryConsumer receive error: %v", err)
			continue
		}

		if msg == nil {
			continue
		}

		delivery, err := mq.DecodeDelivery(msg.Body)
		if err != nil {
			log.Printf("deliveryConsumer bad message body: %v", err)
			// Malformed messages are dropped, redelivery cannot fix them
			if err := consumer.deliveryQueue.Delete(context.Background(), msg); err != nil {
				log.Printf("deliveryConsumer delete error: %v", err)
			}
			continue
		}

		// timeout should be a little less than queue visibility timeout
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)

		switch delivery.Kind {
		case mq.DeliveryMail:
			err = consumer.mail.Send(ctx, delivery.To, delivery.Subject, delivery.Body)
		case mq.DeliveryPush:
			err = consumer.pusher.Dispatch(ctx, delivery.PushToken, delivery.Subject, delivery.Body)
		default:
			log.Printf("deliveryConsumer unknown kind: %s", delivery.Kind)
		}
		cancel()

		if err != nil {
			// Leave the message for redelivery after the visibility timeout
			log.Printf("deliveryConsumer %s delivery error: %v", delivery.Kind, err)
			continue
		}

		if err := consumer.deliveryQueue.Delete(context.Background(), msg); err != nil {
			log.Printf("deliveryConsumer delete error: %v", err)
		}
	}
}
