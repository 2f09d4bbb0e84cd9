package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/acceptevm/acceptevm.go/db/models"
)

// storedInvoice is the row form of an invoice. The record itself stays
// in its binary encoding; the autoincrement id preserves insertion
// order for GetAll and GetLatest.
type storedInvoice struct {
	bun.BaseModel `bun:"table:invoices,alias:i"`

	ID        int64     `bun:",pk,autoincrement"`
	Key       string    `bun:",unique,notnull"`
	Data      []byte    `bun:",notnull"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// PostgresStore is the shared durable backend for deployments where
// several processes need to see the same invoice set.
type PostgresStore struct {
	db *bun.DB
}

func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	bunDB := bun.NewDB(sqlDB, pgdialect.New())
	bunDB.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		// BUNDEBUG=1 logs failed queries
		// BUNDEBUG=2 logs all queries
		bundebug.FromEnv("BUNDEBUG"),
	))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := bunDB.NewCreateTable().Model((*storedInvoice)(nil)).IfNotExists().Exec(ctx); err != nil {
		bunDB.Close()
		return nil, fmt.Errorf("%w: %v", ErrCommunicate, err)
	}
	return &PostgresStore{db: bunDB}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (models.Invoice, error) {
	row := storedInvoice{}
	err := s.db.NewSelect().Model(&row).Where("i.key = ?", key).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Invoice{}, ErrNotFound
	}
	if err != nil {
		return models.Invoice{}, fmt.Errorf("%w: %v", ErrCommunicate, err)
	}
	invoice, err := models.DeserializeInvoice(row.Data)
	if err != nil {
		return models.Invoice{}, fmt.Errorf("%w: %v", ErrDeserialize, err)
	}
	return invoice, nil
}

func (s *PostgresStore) GetAll(ctx context.Context) ([]InvoiceEntry, error) {
	rows := []storedInvoice{}
	err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommunicate, err)
	}
	all := make([]InvoiceEntry, 0, len(rows))
	for _, row := range rows {
		invoice, err := models.DeserializeInvoice(row.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeserialize, err)
		}
		all = append(all, InvoiceEntry{Key: row.Key, Invoice: invoice})
	}
	return all, nil
}

func (s *PostgresStore) GetLatest(ctx context.Context) (InvoiceEntry, error) {
	row := storedInvoice{}
	err := s.db.NewSelect().Model(&row).Order("id DESC").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return InvoiceEntry{}, ErrNotFound
	}
	if err != nil {
		return InvoiceEntry{}, fmt.Errorf("%w: %v", ErrCommunicate, err)
	}
	invoice, err := models.DeserializeInvoice(row.Data)
	if err != nil {
		return InvoiceEntry{}, fmt.Errorf("%w: %v", ErrDeserialize, err)
	}
	return InvoiceEntry{Key: row.Key, Invoice: invoice}, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, invoice models.Invoice) error {
	data, err := invoice.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	row := storedInvoice{Key: key, Data: data}
	_, err = s.db.NewInsert().
		Model(&row).
		On("CONFLICT (key) DO UPDATE").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommunicate, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.NewDelete().Model((*storedInvoice)(nil)).Where("key = ?", key).Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommunicate, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommunicate, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var _ InvoiceStore = (*PostgresStore)(nil)
