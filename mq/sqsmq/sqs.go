package sqsmq

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/nitish987/chatdrop/mq"
)

// SQSMessageQueue adapts a single SQS queue to mq.MessageQueue. The
// delivery worker is its only consumer, so receives are tuned for that
// shape: one message at a time with long polling, so an idle worker does
// not spin on an empty queue.
type SQSMessageQueue struct {
	client   *sqs.Client
	queueURL string
}

const receiveWaitSeconds = 20

func NewSQSMessageQueue(ctx context.Context, devMode bool, sqsEndpoint string, queueName string) (*SQSMessageQueue, error) {
	client, err := newSQSClient(ctx, devMode, sqsEndpoint)
	if err != nil {
		return nil, err
	}

	resp, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	})
	if err != nil {
		return nil, fmt.Errorf("queue '%s' not resolvable in SQS: %w", queueName, err)
	}

	return &SQSMessageQueue{client: client, queueURL: aws.ToString(resp.QueueUrl)}, nil
}

func newSQSClient(ctx context.Context, devMode bool, sqsEndpoint string) (*sqs.Client, error) {
	if devMode {
		// Dummy credentials against a local endpoint (elasticmq or
		// localstack)
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion("us-east-1"),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
			),
		)
		if err != nil {
			return nil, err
		}
		return sqs.New(sqs.Options{
			Credentials:      cfg.Credentials,
			Region:           cfg.Region,
			EndpointResolver: sqs.EndpointResolverFromURL(sqsEndpoint),
		}), nil
	}

	// Production/Fargate: default config (uses Task Role and AWS endpoints)
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return sqs.NewFromConfig(cfg), nil
}

func (q *SQSMessageQueue) Send(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("sqs send failed: %w", err)
	}
	return nil
}

// Receive long-polls for one message. A nil message with a nil error means
// the poll came back empty.
func (q *SQSMessageQueue) Receive(ctx context.Context, visibilityTimeout int32) (*mq.Message, error) {
	resp, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     receiveWaitSeconds,
		VisibilityTimeout:   visibilityTimeout,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}

	raw := resp.Messages[0]
	return &mq.Message{
		Id:   aws.ToString(raw.ReceiptHandle),
		Body: aws.ToString(raw.Body),
	}, nil
}

func (q *SQSMessageQueue) Delete(ctx context.Context, msg *mq.Message) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(msg.Id),
	})
	if err != nil {
		return fmt.Errorf("sqs delete failed: %w", err)
	}
	return nil
}
