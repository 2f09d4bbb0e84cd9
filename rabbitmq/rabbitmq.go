package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"

	"github.com/acceptevm/acceptevm.go/db/models"
)

// bufPool is a classic buffer pool pattern that allows more clever reuse of heap memory.
// Instead of allocating new memory everytime we need to encode a settled invoice we
// reuse buffers from this buffer pool. The reconciliation loop publishes sequentially,
// so there will usually be a single buffer in this pool; consumers running their own
// goroutines make it scale with them.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

const (
	contentTypeJSON   = "application/json"
	settledRoutingKey = "invoice.settled"
)

// Client publishes settled invoices to a RabbitMQ exchange so that
// consumers outside the gateway process can react to payments.
type Client interface {
	// ReflectSettled satisfies the gateway's Reflector contract.
	ReflectSettled(ctx context.Context, settled models.SettledInvoice) error
	// Close will close the connection to rabbitmq
	Close() error
}

type DefaultClient struct {
	conn *amqp.Connection

	// Publishers should be isolated from potential flow control
	// measures applied to consuming connections, so this client keeps
	// a channel of its own and does nothing else with the connection.
	publishChannel *amqp.Channel

	logger *lecho.Logger

	settledInvoiceExchange string
}

type ClientOption = func(client *DefaultClient)

func WithSettledInvoiceExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.settledInvoiceExchange = exchange
	}
}

func WithLogger(logger *lecho.Logger) ClientOption {
	return func(client *DefaultClient) {
		client.logger = logger
	}
}

// Dial connects to RabbitMQ, retrying with exponential backoff while
// the broker comes up, and declares the settled-invoice exchange.
func Dial(uri string, options ...ClientOption) (Client, error) {
	client := &DefaultClient{
		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.DEBUG),
			lecho.WithTimestamp(),
		),
		settledInvoiceExchange: "gateway_settled_invoice",
	}
	for _, opt := range options {
		opt(client)
	}

	expontentialBackoff := backoff.NewExponentialBackOff()
	expontentialBackoff.MaxInterval = time.Second * 10
	expontentialBackoff.MaxElapsedTime = time.Minute

	err := backoff.Retry(func() error {
		conn, err := amqp.Dial(uri)
		if err != nil {
			client.logger.Errorf("amqp: could not connect, retrying: %v", err)
			return err
		}
		client.conn = conn
		return nil
	}, expontentialBackoff)
	if err != nil {
		return nil, err
	}

	publishChannel, err := client.conn.Channel()
	if err != nil {
		client.conn.Close()
		return nil, err
	}
	client.publishChannel = publishChannel

	err = client.publishChannel.ExchangeDeclare(
		client.settledInvoiceExchange,
		// topic exchange, so consumers can filter on the routing key
		"topic",
		// durable
		true,
		// auto-deleted
		false,
		// internal
		false,
		// no-wait
		false,
		// arguments
		nil,
	)
	if err != nil {
		client.conn.Close()
		return nil, err
	}

	return client, nil
}

func (client *DefaultClient) Close() error { return client.conn.Close() }

func (client *DefaultClient) ReflectSettled(ctx context.Context, settled models.SettledInvoice) error {
	payload := bufPool.Get().(*bytes.Buffer)
	payload.Reset()
	defer bufPool.Put(payload)

	if err := json.NewEncoder(payload).Encode(settled); err != nil {
		return err
	}

	err := client.publishChannel.PublishWithContext(ctx,
		client.settledInvoiceExchange,
		settledRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		captureErr(client.logger, err)
		return err
	}

	client.logger.Debugf("Successfully published settled invoice to rabbitmq with id %s", settled.ID)

	return nil
}

func captureErr(logger *lecho.Logger, err error) {
	logger.Error(err)
	sentry.CaptureException(err)
}
