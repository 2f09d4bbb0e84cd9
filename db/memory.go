package db

import (
	"context"
	"sync"

	"github.com/acceptevm/acceptevm.go/db/models"
)

// MemoryStore is the volatile backend: faster and dependency-free, but
// a crash permanently loses in-flight invoices together with their
// ephemeral keys. Insertion order is tracked explicitly so GetAll and
// GetLatest behave like the durable backends.
type MemoryStore struct {
	mu       sync.Mutex
	invoices map[string]models.Invoice
	order    []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invoices: make(map[string]models.Invoice),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoice, ok := s.invoices[key]
	if !ok {
		return models.Invoice{}, ErrNotFound
	}
	return invoice, nil
}

func (s *MemoryStore) GetAll(_ context.Context) ([]InvoiceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]InvoiceEntry, 0, len(s.order))
	for _, key := range s.order {
		all = append(all, InvoiceEntry{Key: key, Invoice: s.invoices[key]})
	}
	return all, nil
}

func (s *MemoryStore) GetLatest(_ context.Context) (InvoiceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		return InvoiceEntry{}, ErrNotFound
	}
	key := s.order[len(s.order)-1]
	return InvoiceEntry{Key: key, Invoice: s.invoices[key]}, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, invoice models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[key]; !exists {
		s.order = append(s.order, key)
	}
	s.invoices[key] = invoice
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[key]; !exists {
		return ErrNotFound
	}
	delete(s.invoices, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ InvoiceStore = (*MemoryStore)(nil)
