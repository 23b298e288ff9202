package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	mailermocks "github.com/nitish987/chatdrop/mailer/mocks"
	"github.com/nitish987/chatdrop/mq"
	mqmocks "github.com/nitish987/chatdrop/mq/mocks"
	pushmocks "github.com/nitish987/chatdrop/push/mocks"
	"github.com/nitish987/chatdrop/worker"
)

// runConsumer drives Run until the queue mock reports cancellation, which
// makes the loop return.
func runConsumer(t *testing.T, consumer *worker.DeliveryConsumer) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		consumer.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
}

func encodeDelivery(t *testing.T, d mq.DeliveryMessage) string {
	t.Helper()
	body, err := d.Encode()
	assert.NoError(t, err)
	return body
}

func TestDeliveryConsumer_DeliversMailAndPush(t *testing.T) {
	mockQueue := new(mqmocks.MockQueue)
	mockMailer := new(mailermocks.MockMailer)
	mockPusher := new(pushmocks.MockDispatcher)
	consumer := worker.NewDeliveryConsumer(mockQueue, mockMailer, mockPusher)

	mailMsg := &mq.Message{Id: "r1", Body: encodeDelivery(t, mq.DeliveryMessage{
		Kind: mq.DeliveryMail, To: "asha@example.com", Subject: "Verification code", Body: "123456",
	})}
	pushMsg := &mq.Message{Id: "r2", Body: encodeDelivery(t, mq.DeliveryMessage{
		Kind: mq.DeliveryPush, PushToken: "fcm-token-1", Subject: "New browser login", Body: "Firefox on Linux",
	})}

	mockQueue.On("Receive", mock.Anything, mock.Anything).Return(mailMsg, nil).Once()
	mockQueue.On("Receive", mock.Anything, mock.Anything).Return(pushMsg, nil).Once()
	mockQueue.On("Receive", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	mockMailer.On("Send", mock.Anything, "asha@example.com", "Verification code", "123456").Return(nil).Once()
	mockPusher.On("Dispatch", mock.Anything, "fcm-token-1", "New browser login", "Firefox on Linux").Return(nil).Once()
	mockQueue.On("Delete", mock.Anything, mailMsg).Return(nil).Once()
	mockQueue.On("Delete", mock.Anything, pushMsg).Return(nil).Once()

	runConsumer(t, consumer)

	mockQueue.AssertExpectations(t)
	mockMailer.AssertExpectations(t)
	mockPusher.AssertExpectations(t)
}

func TestDeliveryConsumer_DropsMalformedMessage(t *testing.T) {
	mockQueue := new(mqmocks.MockQueue)
	mockMailer := new(mailermocks.MockMailer)
	mockPusher := new(pushmocks.MockDispatcher)
	consumer := worker.NewDeliveryConsumer(mockQueue, mockMailer, mockPusher)

	badMsg := &mq.Message{Id: "r1", Body: "not-json"}
	mockQueue.On("Receive", mock.Anything, mock.Anything).Return(badMsg, nil).Once()
	mockQueue.On("Receive", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	// Redelivery cannot fix a malformed body, so it is deleted unhandled
	mockQueue.On("Delete", mock.Anything, badMsg).Return(nil).Once()

	runConsumer(t, consumer)

	mockQueue.AssertExpectations(t)
	mockMailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockPusher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliveryConsumer_LeavesFailedDeliveryForRetry(t *testing.T) {
	mockQueue := new(mqmocks.MockQueue)
	mockMailer := new(mailermocks.MockMailer)
	mockPusher := new(pushmocks.MockDispatcher)
	consumer := worker.NewDeliveryConsumer(mockQueue, mockMailer, mockPusher)

	mailMsg := &mq.Message{Id: "r1", Body: encodeDelivery(t, mq.DeliveryMessage{
		Kind: mq.DeliveryMail, To: "asha@example.com", Subject: "Verification code", Body: "123456",
	})}
	mockQueue.On("Receive", mock.Anything, mock.Anything).Return(mailMsg, nil).Once()
	mockQueue.On("Receive", mock.Anything, mock.Anything).Return(nil, context.Canceled)
	mockMailer.On("Send", mock.Anything, "asha@example.com", "Verification code", "123456").Return(assert.AnError).Once()

	runConsumer(t, consumer)

	// The message stays on the queue for redelivery after the visibility
	// timeout lapses
	mockQueue.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	mockMailer.AssertExpectations(t)
}
