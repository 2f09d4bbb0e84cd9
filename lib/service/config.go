package service

import (
	"fmt"
)

const (
	TransactionTypeLegacy  = "legacy"
	TransactionTypeDynamic = "dynamic"
)

type Config struct {
	RPCUrl          string `envconfig:"RPC_URL" required:"true"`
	TreasuryAddress string `envconfig:"TREASURY_ADDRESS" required:"true"`
	// DatabaseUri selects the store backend: postgres:// for the shared
	// durable store, anything else is a file path for the embedded one.
	DatabaseUri string `envconfig:"DATABASE_URI" default:"invoices.db"`
	// GatewayName labels log lines when several gateways share a process.
	GatewayName string `envconfig:"GATEWAY_NAME" default:"acceptevm"`
	// TransactionType picks the sweep pricing model: "legacy" or "dynamic".
	TransactionType  string `envconfig:"TRANSACTION_TYPE" default:"legacy"`
	MinConfirmations uint64 `envconfig:"MIN_CONFIRMATIONS" default:"1"`
	// ConfirmationTimeout bounds the wait for a sweep receipt, in seconds.
	ConfirmationTimeout int64 `envconfig:"CONFIRMATION_TIMEOUT" default:"180"`
	// InvoiceDelayMillis is the sleep after each invoice in a pass, to
	// stay under RPC provider rate limits.
	InvoiceDelayMillis int64 `envconfig:"INVOICE_DELAY_MILLIS" default:"1000"`
	// PollDelayMillis is the sleep between two full passes.
	PollDelayMillis int64 `envconfig:"POLL_DELAY_MILLIS" default:"1000"`
	// TransferGasLimit overrides gas estimation for sweeps when not 0.
	// Useful when the treasury is a contract with custom receive logic.
	TransferGasLimit uint64 `envconfig:"TRANSFER_GAS_LIMIT" default:"0"`
	// FeeEstimationRetryMax is how many times a failed fee-market
	// estimation is retried before the sweep attempt gives up. 0 means
	// a single attempt.
	FeeEstimationRetryMax uint64 `envconfig:"FEE_ESTIMATION_RETRY_MAX" default:"3"`
	// FeeEstimationRetryDelay is the sleep between estimation attempts,
	// in seconds.
	FeeEstimationRetryDelay int64 `envconfig:"FEE_ESTIMATION_RETRY_DELAY" default:"5"`
	// ReflectorTimeout bounds the enqueue wait when delivering a settled
	// invoice, in seconds. Delivery is best-effort.
	ReflectorTimeout               int64  `envconfig:"REFLECTOR_TIMEOUT" default:"30"`
	DefaultRateLimit               int    `envconfig:"DEFAULT_RATE_LIMIT" default:"10"`
	StrictRateLimit                int    `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit                 int    `envconfig:"BURST_RATE_LIMIT" default:"1"`
	SentryDSN                      string `envconfig:"SENTRY_DSN"`
	LogFilePath                    string `envconfig:"LOG_FILE_PATH"`
	Host                           string `envconfig:"HOST" default:"localhost:8080"`
	Port                           int    `envconfig:"PORT" default:"8080"`
	RabbitMQUri                    string `envconfig:"RABBITMQ_URI"`
	RabbitMQSettledInvoiceExchange string `envconfig:"RABBITMQ_SETTLED_INVOICE_EXCHANGE" default:"gateway_settled_invoice"`
}

func (c *Config) Validate() error {
	switch c.TransactionType {
	case TransactionTypeLegacy, TransactionTypeDynamic:
	default:
		return fmt.Errorf("unrecognized transaction type %s", c.TransactionType)
	}
	return nil
}
