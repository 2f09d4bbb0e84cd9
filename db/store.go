package db

import (
	"context"
	"errors"
	"strings"

	"github.com/acceptevm/acceptevm.go/db/models"
)

var (
	// ErrNotFound : no invoice is stored under the given key.
	ErrNotFound = errors.New("invoice not found")
	// ErrCommunicate : the backend could not be reached or refused the
	// operation. Transient; the caller must not assume invoice loss.
	ErrCommunicate = errors.New("could not communicate with invoice store")
	// ErrSerialize : the invoice could not be encoded for storage.
	ErrSerialize = errors.New("could not serialize invoice")
	// ErrDeserialize : stored bytes could not be decoded back into an
	// invoice.
	ErrDeserialize = errors.New("could not deserialize invoice")
)

// InvoiceEntry pairs an invoice with the key it is stored under.
type InvoiceEntry struct {
	Key     string
	Invoice models.Invoice
}

// InvoiceStore is the persistence contract of the gateway. The store
// exclusively owns invoice lifetime from Set to Delete; the
// reconciliation loop re-reads it on every pass instead of caching
// entries. All methods are safe for concurrent use.
//
// GetAll returns entries in insertion order where the backend can
// preserve it; no stronger ordering is guaranteed.
type InvoiceStore interface {
	Get(ctx context.Context, key string) (models.Invoice, error)
	GetAll(ctx context.Context) ([]InvoiceEntry, error)
	GetLatest(ctx context.Context) (InvoiceEntry, error)
	Set(ctx context.Context, key string, invoice models.Invoice) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open picks a store backend based on the configured URI, the same way
// the database connection is selected from the DSN prefix. A
// postgres:// style URI opens the bun-backed durable store; anything
// else is treated as a file path for the embedded bbolt store. The
// purely volatile store is constructed explicitly via NewMemoryStore.
func Open(databaseURI string) (InvoiceStore, error) {
	switch {
	case strings.HasPrefix(databaseURI, "postgres://") ||
		strings.HasPrefix(databaseURI, "postgresql://") ||
		strings.HasPrefix(databaseURI, "unix://"):
		return OpenPostgresStore(databaseURI)
	default:
		return OpenBoltStore(databaseURI)
	}
}
