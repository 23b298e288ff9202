package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/nitish987/chatdrop/mq"
)

// Mailer delivers account mail (OTP codes, security alerts).
type Mailer interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// QueueMailer enqueues mail on the delivery queue; the delivery worker
// performs the actual SMTP send. Auth flows never block on SMTP.
type QueueMailer struct {
	queue mq.MessageQueue
}

func NewQueueMailer(queue mq.MessageQueue) *QueueMailer {
	return &QueueMailer{queue: queue}
}

func (m *QueueMailer) Send(ctx context.Context, to string, subject string, body string) error {
	msg := mq.DeliveryMessage{
		Kind:    mq.DeliveryMail,
		To:      to,
		Subject: subject,
		Body:    body,
	}
	encoded, err := msg.Encode()
	if err != nil {
		return err
	}
	return m.queue.Send(ctx, encoded)
}

// SMTPMailer sends mail directly over SMTP. Used by the delivery worker.
type SMTPMailer struct {
	host     string
	port     string
	from     string
	password string
}

func NewSMTPMailer(host, port, from, password string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, from: from, password: password}
}

func (m *SMTPMailer) Send(ctx context.Context, to string, subject string, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s", m.from, to, subject, body)
	auth := smtp.PlainAuth("", m.from, m.password, m.host)
	return smtp.SendMail(m.host+":"+m.port, auth, m.from, []string{to}, []byte(msg))
}
