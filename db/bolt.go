package db

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/acceptevm/acceptevm.go/db/models"
)

var (
	invoicesBucket = []byte("invoices")
	// indexBucket maps a monotonic sequence number to an invoice key so
	// that iteration and GetLatest follow insertion order even though
	// invoice keys are hashes.
	indexBucket = []byte("invoice_index")
	// seqBucket maps an invoice key back to its sequence number for
	// index maintenance on delete.
	seqBucket = []byte("invoice_seq")
)

// BoltStore is the durable backend: invoices survive a process restart
// at the cost of the ephemeral keys also living on disk for the
// lifetime of the invoice.
type BoltStore struct {
	db *bolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommunicate, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{invoicesBucket, indexBucket, seqBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrCommunicate, err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) (models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(invoicesBucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		decoded, err := models.DeserializeInvoice(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeserialize, err)
		}
		invoice = decoded
		return nil
	})
	return invoice, err
}

func (s *BoltStore) GetAll(_ context.Context) ([]InvoiceEntry, error) {
	var all []InvoiceEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		invoices := tx.Bucket(invoicesBucket)
		cursor := tx.Bucket(indexBucket).Cursor()
		for seq, key := cursor.First(); seq != nil; seq, key = cursor.Next() {
			data := invoices.Get(key)
			if data == nil {
				continue
			}
			invoice, err := models.DeserializeInvoice(data)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrDeserialize, err)
			}
			all = append(all, InvoiceEntry{Key: string(key), Invoice: invoice})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

func (s *BoltStore) GetLatest(_ context.Context) (InvoiceEntry, error) {
	var entry InvoiceEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		_, key := tx.Bucket(indexBucket).Cursor().Last()
		if key == nil {
			return ErrNotFound
		}
		data := tx.Bucket(invoicesBucket).Get(key)
		if data == nil {
			return ErrNotFound
		}
		invoice, err := models.DeserializeInvoice(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeserialize, err)
		}
		entry = InvoiceEntry{Key: string(key), Invoice: invoice}
		return nil
	})
	return entry, err
}

func (s *BoltStore) Set(_ context.Context, key string, invoice models.Invoice) error {
	data, err := invoice.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		invoices := tx.Bucket(invoicesBucket)
		if invoices.Get([]byte(key)) == nil {
			index := tx.Bucket(indexBucket)
			seq, err := index.NextSequence()
			if err != nil {
				return err
			}
			if err := index.Put(itob(seq), []byte(key)); err != nil {
				return err
			}
			if err := tx.Bucket(seqBucket).Put([]byte(key), itob(seq)); err != nil {
				return err
			}
		}
		return invoices.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommunicate, err)
	}
	return nil
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		invoices := tx.Bucket(invoicesBucket)
		if invoices.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		if err := invoices.Delete([]byte(key)); err != nil {
			return fmt.Errorf("%w: %v", ErrCommunicate, err)
		}
		seqs := tx.Bucket(seqBucket)
		if seq := seqs.Get([]byte(key)); seq != nil {
			if err := tx.Bucket(indexBucket).Delete(seq); err != nil {
				return fmt.Errorf("%w: %v", ErrCommunicate, err)
			}
			if err := seqs.Delete([]byte(key)); err != nil {
				return fmt.Errorf("%w: %v", ErrCommunicate, err)
			}
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

var _ InvoiceStore = (*BoltStore)(nil)
