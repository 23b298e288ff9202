package mq

import (
	"context"
	"encoding/json"
)

type MessageQueue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, visibilityTimeout int32) (*Message, error)
	Delete(ctx context.Context, msg *Message) error
}

type Message struct {
	Id   string
	Body string
}

const (
	DeliveryMail = "mail"
	DeliveryPush = "push"
)

// DeliveryMessage is the queue envelope for outbound mail and push
// notifications produced by the auth flows.
type DeliveryMessage struct {
	Kind      string `json:"kind"`
	To        string `json:"to"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body"`
	PushToken string `json:"push_token,omitempty"`
}

func (d DeliveryMessage) Encode() (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func DecodeDelivery(body string) (DeliveryMessage, error) {
	var d DeliveryMessage
	err := json.Unmarshal([]byte(body), &d)
	return d, err
}
